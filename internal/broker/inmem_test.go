package broker

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemSendPollRoundTrip(t *testing.T) {
	transport := NewInMemTransport()
	ctx := context.Background()

	require.NoError(t, transport.Send(ctx, "topic", []byte("k1"), []byte("v1")))
	require.NoError(t, transport.Send(ctx, "topic", []byte("k2"), []byte("v2")))

	records, err := transport.Poll(ctx, "topic", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, Position(0), records[0].Position)
	assert.Equal(t, []byte("v1"), records[0].Value)
	assert.Equal(t, Position(1), records[1].Position)
	assert.Equal(t, []byte("v2"), records[1].Value)
}

func TestInMemPollRespectsMaxRecords(t *testing.T) {
	transport := NewInMemTransport()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, transport.Send(ctx, "topic", nil, []byte{byte(i)}))
	}

	records, err := transport.Poll(ctx, "topic", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = transport.Poll(ctx, "topic", 10)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, Position(2), records[0].Position)
}

func TestInMemPollBlocksUntilDataOrDeadline(t *testing.T) {
	transport := NewInMemTransport()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := transport.Poll(ctx, "empty", 10)
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
}

func TestInMemCommitAndResume(t *testing.T) {
	transport := NewInMemTransport()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, transport.Send(ctx, "topic", nil, []byte{byte(i)}))
	}

	records, err := transport.Poll(ctx, "topic", 10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.NoError(t, transport.Commit(ctx, "topic", records[1].Position))
	assert.Equal(t, Position(2), transport.Committed("topic"))

	// Resume rewinds the cursor to the committed position; the third
	// record is redelivered.
	pos, err := transport.Resume(ctx, "topic")
	require.NoError(t, err)
	assert.Equal(t, Position(2), pos)

	records, err = transport.Poll(ctx, "topic", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Position(2), records[0].Position)
}

func TestInMemCommitNeverMovesBackwards(t *testing.T) {
	transport := NewInMemTransport()
	ctx := context.Background()

	require.NoError(t, transport.Commit(ctx, "topic", 5))
	require.NoError(t, transport.Commit(ctx, "topic", 2))
	assert.Equal(t, Position(6), transport.Committed("topic"))
}

func TestInMemSendHookFailure(t *testing.T) {
	transport := NewInMemTransport()
	transport.SendHook = func(topic string, key, value []byte) error {
		return stderrors.New("injected failure")
	}

	err := transport.Send(context.Background(), "topic", nil, []byte("v"))
	assert.Error(t, err)
	assert.Empty(t, transport.Records("topic"))
}

func TestInMemSendAfterClose(t *testing.T) {
	transport := NewInMemTransport()
	require.NoError(t, transport.Close())

	err := transport.Send(context.Background(), "topic", nil, []byte("v"))
	assert.Error(t, err)
}

func TestInMemTopicsAreIsolated(t *testing.T) {
	transport := NewInMemTransport()
	ctx := context.Background()

	require.NoError(t, transport.Send(ctx, "topic_a", nil, []byte("a")))
	require.NoError(t, transport.Send(ctx, "topic_b", nil, []byte("b")))

	records, err := transport.Poll(ctx, "topic_a", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []byte("a"), records[0].Value)
}
