package broker

import (
	"context"
)

// Position identifies a record's place in a topic's log. Positions are
// monotonically increasing within a topic; committing a position marks
// everything at or before it as consumed.
type Position int64

type Record struct {
	Position Position
	Key      []byte
	Value    []byte
}

// Transport is the broker collaborator the core publishes to and consumes
// from. Send blocks until the transport acknowledges durable receipt at the
// configured acknowledgement level.
type Transport interface {
	Send(ctx context.Context, topic string, key, value []byte) error
	Poll(ctx context.Context, topic string, maxRecords int) ([]Record, error)
	Commit(ctx context.Context, topic string, position Position) error
	Resume(ctx context.Context, topic string) (Position, error)
	Close() error
}
