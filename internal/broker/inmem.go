package broker

import (
	"context"
	"sync"
	"time"

	"sensorflow/pkg/errors"
)

// InMemTransport is a single-process Transport used by tests and local
// runs. Each topic is an append-only log with one consumer cursor and one
// committed position.
type InMemTransport struct {
	mu        sync.Mutex
	logs      map[string][]Record
	cursors   map[string]Position
	committed map[string]Position
	closed    bool

	// SendHook, when set, runs before each append and may reject the send.
	// Tests use it to simulate transient transport failures.
	SendHook func(topic string, key, value []byte) error
}

func NewInMemTransport() *InMemTransport {
	return &InMemTransport{
		logs:      make(map[string][]Record),
		cursors:   make(map[string]Position),
		committed: make(map[string]Position),
	}
}

func (t *InMemTransport) Send(ctx context.Context, topic string, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.SendHook != nil {
		if err := t.SendHook(topic, key, value); err != nil {
			return errors.Wrap(err, errors.ErrTransport)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.ErrTransport.WithMessage("transport closed")
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	t.logs[topic] = append(t.logs[topic], Record{
		Position: Position(len(t.logs[topic])),
		Key:      keyCopy,
		Value:    valueCopy,
	})
	return nil
}

func (t *InMemTransport) Poll(ctx context.Context, topic string, maxRecords int) ([]Record, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t.mu.Lock()
		log := t.logs[topic]
		cursor := t.cursors[topic]
		if int(cursor) < len(log) {
			end := int(cursor) + maxRecords
			if end > len(log) {
				end = len(log)
			}
			records := make([]Record, end-int(cursor))
			copy(records, log[cursor:end])
			t.cursors[topic] = Position(end)
			t.mu.Unlock()
			return records, nil
		}
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (t *InMemTransport) Commit(ctx context.Context, topic string, position Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if position >= t.committed[topic] {
		t.committed[topic] = position + 1
	}
	return nil
}

func (t *InMemTransport) Resume(ctx context.Context, topic string) (Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos := t.committed[topic]
	t.cursors[topic] = pos
	return pos, nil
}

func (t *InMemTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// Records returns a copy of a topic's log, for assertions in tests.
func (t *InMemTransport) Records(topic string) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.logs[topic]))
	copy(out, t.logs[topic])
	return out
}

// Committed returns the committed position for a topic.
func (t *InMemTransport) Committed(topic string) Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed[topic]
}

// Rewind moves the consumer cursor back to the committed position, as a
// restart would.
func (t *InMemTransport) Rewind(topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cursors[topic] = t.committed[topic]
}
