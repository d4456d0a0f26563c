package subscribe

import "sync"

// deliveryRecord tracks what one producer has already had delivered: the
// highest contiguous sequence id plus a bounded set of ids seen ahead of it.
type deliveryRecord struct {
	contiguous int64
	seen       map[int64]struct{}
}

// observe reports whether seq is new. New ids are recorded; ids at or below
// the contiguous floor, or already in the out-of-order set, are duplicates.
func (r *deliveryRecord) observe(seq int64, capacity int) bool {
	if seq <= r.contiguous {
		return false
	}
	if _, ok := r.seen[seq]; ok {
		return false
	}

	r.seen[seq] = struct{}{}

	for {
		if _, ok := r.seen[r.contiguous+1]; !ok {
			break
		}
		r.contiguous++
		delete(r.seen, r.contiguous)
	}

	// Bound memory: when the out-of-order set overflows, raise the floor to
	// the smallest tracked id. A permanent gap in the producer's id stream
	// (a publish that never succeeded) is forgotten instead of tracked
	// forever; at-least-once semantics already tolerate the rare duplicate
	// this trades for.
	for len(r.seen) > capacity {
		smallest := int64(-1)
		for id := range r.seen {
			if smallest < 0 || id < smallest {
				smallest = id
			}
		}
		delete(r.seen, smallest)
		if smallest > r.contiguous {
			r.contiguous = smallest
		}
	}

	return true
}

// DeliveryTracker owns per-producer delivery records. It is mutated only by
// the subscriber that created it.
type DeliveryTracker struct {
	mu       sync.Mutex
	capacity int
	records  map[string]*deliveryRecord
}

func NewDeliveryTracker(capacity int) *DeliveryTracker {
	if capacity < 1 {
		capacity = 1
	}
	return &DeliveryTracker{
		capacity: capacity,
		records:  make(map[string]*deliveryRecord),
	}
}

// Observe reports whether the (producer, sequence) pair is new and records
// it. Duplicates return false.
func (t *DeliveryTracker) Observe(producerID string, sequenceID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[producerID]
	if !ok {
		record = &deliveryRecord{seen: make(map[int64]struct{})}
		t.records[producerID] = record
	}

	return record.observe(sequenceID, t.capacity)
}

// Contiguous returns the highest contiguous delivered sequence id for a
// producer, 0 when nothing has been delivered.
func (t *DeliveryTracker) Contiguous(producerID string) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if record, ok := t.records[producerID]; ok {
		return record.contiguous
	}
	return 0
}
