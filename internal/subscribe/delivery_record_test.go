package subscribe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerFirstDeliveries(t *testing.T) {
	tracker := NewDeliveryTracker(16)

	assert.True(t, tracker.Observe("p1", 1))
	assert.True(t, tracker.Observe("p1", 2))
	assert.True(t, tracker.Observe("p1", 3))
	assert.Equal(t, int64(3), tracker.Contiguous("p1"))
}

func TestTrackerRejectsDuplicates(t *testing.T) {
	tracker := NewDeliveryTracker(16)

	assert.True(t, tracker.Observe("p1", 1))
	assert.False(t, tracker.Observe("p1", 1))

	assert.True(t, tracker.Observe("p1", 5))
	assert.False(t, tracker.Observe("p1", 5), "out-of-order ids are remembered too")
}

func TestTrackerOutOfOrderAdvancesFloor(t *testing.T) {
	tracker := NewDeliveryTracker(16)

	assert.True(t, tracker.Observe("p1", 2))
	assert.True(t, tracker.Observe("p1", 3))
	assert.Equal(t, int64(0), tracker.Contiguous("p1"))

	// Filling the gap collapses the out-of-order set into the floor.
	assert.True(t, tracker.Observe("p1", 1))
	assert.Equal(t, int64(3), tracker.Contiguous("p1"))

	assert.False(t, tracker.Observe("p1", 2))
}

func TestTrackerProducersAreIndependent(t *testing.T) {
	tracker := NewDeliveryTracker(16)

	assert.True(t, tracker.Observe("p1", 1))
	assert.True(t, tracker.Observe("p2", 1))
	assert.False(t, tracker.Observe("p1", 1))
	assert.Equal(t, int64(1), tracker.Contiguous("p1"))
	assert.Equal(t, int64(1), tracker.Contiguous("p2"))
}

func TestTrackerOverflowRaisesFloor(t *testing.T) {
	tracker := NewDeliveryTracker(2)

	// Sequence 1 never arrives; the out-of-order set fills up.
	assert.True(t, tracker.Observe("p1", 2))
	assert.True(t, tracker.Observe("p1", 3))
	assert.True(t, tracker.Observe("p1", 4))

	// Overflow evicted the smallest tracked id and raised the floor past
	// the permanent gap.
	assert.GreaterOrEqual(t, tracker.Contiguous("p1"), int64(2))

	// Later ids still work normally.
	assert.True(t, tracker.Observe("p1", 5))
	assert.False(t, tracker.Observe("p1", 5))
}

func TestTrackerUnknownProducer(t *testing.T) {
	tracker := NewDeliveryTracker(16)
	assert.Equal(t, int64(0), tracker.Contiguous("never-seen"))
}
