package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensorflow/internal/broker"
	"sensorflow/internal/config"
	"sensorflow/internal/logger"
	"sensorflow/internal/publish"
	"sensorflow/internal/subscribe"
	"sensorflow/internal/trend"
	"sensorflow/pkg/models"
)

const (
	readingsTopic = "sensor_readings"
	dlqTopic      = "sensor_readings_dlq"
)

func fastRetry() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func startPipeline(t *testing.T, transport *broker.InMemTransport, agg *trend.Aggregator) (stop func()) {
	t.Helper()

	sub, err := subscribe.New(transport, readingsTopic,
		func(ctx context.Context, envelope models.Envelope) error {
			agg.Ingest(envelope)
			return nil
		},
		config.SubscriberConfig{
			BatchSize:   10,
			PollTimeout: 20 * time.Millisecond,
			DedupWindow: 64,
			Retry:       fastRetry(),
		},
		logger.NopLogger(),
	)
	require.NoError(t, err)
	sub.WithDeadLetterSink(subscribe.NewTopicDeadLetterSink(transport, dlqTopic, logger.NopLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sub.Run(ctx)
	}()
	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber did not stop")
		}
	}
}

func TestPipelinePublishToTrend(t *testing.T) {
	transport := broker.NewInMemTransport()

	publisher, err := publish.New(transport, config.PublisherConfig{
		ProducerID:  "greenhouse-1",
		MaxInFlight: 4,
		Retry:       fastRetry(),
	}, logger.NopLogger())
	require.NoError(t, err)

	agg, err := trend.NewAggregator(config.WindowConfig{
		Span:     10 * time.Minute,
		Lateness: time.Minute,
	})
	require.NoError(t, err)

	stop := startPipeline(t, transport, agg)
	defer stop()

	ctx := context.Background()
	base := time.Now().UTC()
	for i, value := range []float64{20.0, 20.5, 21.0, 21.5} {
		_, err := publisher.Publish(ctx, readingsTopic, base.Add(time.Duration(i)*time.Second),
			map[string]interface{}{"temperature": value})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return agg.SampleCount() == 4
	}, 2*time.Second, 5*time.Millisecond)

	result := agg.CurrentTrend()
	assert.InDelta(t, 20.75, result.Mean, 1e-9)
	require.True(t, result.SlopeValid)
	assert.InDelta(t, 0.5, result.Slope, 1e-9)
}

func TestPipelineDuplicateDeliveryIsIdempotent(t *testing.T) {
	transport := broker.NewInMemTransport()

	agg, err := trend.NewAggregator(config.WindowConfig{
		Span: 10 * time.Minute,
	})
	require.NoError(t, err)

	stop := startPipeline(t, transport, agg)
	defer stop()

	ctx := context.Background()
	data, err := models.Encode(models.Envelope{
		ProducerID: "greenhouse-1",
		SequenceID: 1,
		Timestamp:  time.Now().UTC(),
		Payload:    map[string]interface{}{"temperature": 20.0},
	})
	require.NoError(t, err)

	// A producer-side retry after a lost acknowledgement shows up as the
	// same envelope appended twice.
	require.NoError(t, transport.Send(ctx, readingsTopic, []byte("greenhouse-1"), data))
	require.NoError(t, transport.Send(ctx, readingsTopic, []byte("greenhouse-1"), data))

	require.Eventually(t, func() bool {
		return transport.Committed(readingsTopic) == broker.Position(2)
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, agg.SampleCount(), "duplicate delivery must affect the window once")
}

func TestPipelinePublisherRetrySurvivesTransientOutage(t *testing.T) {
	transport := broker.NewInMemTransport()

	failures := 2
	transport.SendHook = func(topic string, key, value []byte) error {
		if failures > 0 {
			failures--
			return context.DeadlineExceeded
		}
		return nil
	}

	publisher, err := publish.New(transport, config.PublisherConfig{
		ProducerID:  "greenhouse-1",
		MaxInFlight: 1,
		Retry:       fastRetry(),
	}, logger.NopLogger())
	require.NoError(t, err)

	_, err = publisher.Publish(context.Background(), readingsTopic, time.Now(),
		map[string]interface{}{"temperature": 20.0})
	require.NoError(t, err)
	assert.Len(t, transport.Records(readingsTopic), 1)
}
