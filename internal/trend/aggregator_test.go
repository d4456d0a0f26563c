package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensorflow/internal/config"
	"sensorflow/pkg/models"
)

func newTestAggregator(t *testing.T, span, lateness time.Duration) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(config.WindowConfig{
		Span:     span,
		Lateness: lateness,
	})
	require.NoError(t, err)
	return agg
}

func reading(ts time.Time, value float64) models.Envelope {
	return models.Envelope{
		ProducerID: "producer-1",
		SequenceID: 1,
		Timestamp:  ts,
		Payload:    map[string]interface{}{"temperature": value},
	}
}

func TestNewAggregatorValidation(t *testing.T) {
	_, err := NewAggregator(config.WindowConfig{Span: 0})
	assert.Error(t, err)

	_, err = NewAggregator(config.WindowConfig{Span: time.Minute, Lateness: -time.Second})
	assert.Error(t, err)
}

func TestCurrentTrendMeanAndSlope(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base, 10))
	agg.Ingest(reading(base.Add(1*time.Second), 12))
	agg.Ingest(reading(base.Add(2*time.Second), 14))

	result := agg.CurrentTrend()
	assert.Equal(t, 3, result.SampleCount)
	assert.InDelta(t, 12.0, result.Mean, 1e-9)
	require.True(t, result.SlopeValid)
	assert.InDelta(t, 2.0, result.Slope, 1e-9)
	assert.Equal(t, uint64(0), result.DroppedLate)
}

func TestCurrentTrendEmptyWindow(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, time.Second)

	result := agg.CurrentTrend()
	assert.Equal(t, 0, result.SampleCount)
	assert.Equal(t, 0.0, result.Mean)
	assert.False(t, result.SlopeValid)
}

func TestCurrentTrendSingleSample(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base, 21.5))

	result := agg.CurrentTrend()
	assert.Equal(t, 1, result.SampleCount)
	assert.InDelta(t, 21.5, result.Mean, 1e-9)
	assert.False(t, result.SlopeValid)
}

func TestCurrentTrendIdenticalTimestamps(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base, 10))
	agg.Ingest(reading(base, 20))

	result := agg.CurrentTrend()
	assert.Equal(t, 2, result.SampleCount)
	assert.False(t, result.SlopeValid)
}

func TestIngestOutOfOrderWithinLateness(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base, 10))
	agg.Ingest(reading(base.Add(2*time.Second), 14))
	// Acceptance threshold is watermark - span - lateness = base - 9s.
	agg.Ingest(reading(base.Add(-5*time.Second), 8))

	assert.Equal(t, 3, agg.SampleCount())
	assert.Equal(t, uint64(0), agg.DroppedLate())
}

func TestIngestDropsTooLate(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base, 10))
	agg.Ingest(reading(base.Add(2*time.Second), 14))
	agg.Ingest(reading(base.Add(-20*time.Second), 5))

	assert.Equal(t, 2, agg.SampleCount())
	assert.Equal(t, uint64(1), agg.DroppedLate())
	assert.Equal(t, uint64(1), agg.CurrentTrend().DroppedLate)
}

func TestIngestEvictsBeyondSpan(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base, 10))
	agg.Ingest(reading(base.Add(5*time.Second), 11))
	// Advancing the watermark to base+15s pushes the first sample out of
	// the window (cutoff base+5s).
	agg.Ingest(reading(base.Add(15*time.Second), 12))

	assert.Equal(t, 2, agg.SampleCount())

	result := agg.CurrentTrend()
	assert.InDelta(t, 11.5, result.Mean, 1e-9)
}

func TestIngestLateArrivalDoesNotMoveWatermark(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, 5*time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base.Add(10*time.Second), 10))
	agg.Ingest(reading(base.Add(2*time.Second), 9))
	agg.Ingest(reading(base.Add(4*time.Second), 9.5))

	// The out-of-order arrivals are inserted in timestamp order.
	result := agg.CurrentTrend()
	assert.Equal(t, 3, result.SampleCount)
	require.True(t, result.SlopeValid)
	assert.Greater(t, result.Slope, 0.0)
}

func TestIngestSkipsMissingValueField(t *testing.T) {
	agg := newTestAggregator(t, 10*time.Second, time.Second)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(models.Envelope{
		ProducerID: "producer-1",
		SequenceID: 1,
		Timestamp:  base,
		Payload:    map[string]interface{}{"humidity": 55.0},
	})

	assert.Equal(t, 0, agg.SampleCount())
}

func TestCustomValueField(t *testing.T) {
	agg, err := NewAggregator(config.WindowConfig{
		Span:       time.Minute,
		ValueField: "pressure",
	})
	require.NoError(t, err)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(models.Envelope{
		ProducerID: "producer-1",
		SequenceID: 1,
		Timestamp:  base,
		Payload:    map[string]interface{}{"pressure": 1013.2, "temperature": 20.0},
	})

	result := agg.CurrentTrend()
	require.Equal(t, 1, result.SampleCount)
	assert.InDelta(t, 1013.2, result.Mean, 1e-9)
}

func TestStabilityDetection(t *testing.T) {
	agg, err := NewAggregator(config.WindowConfig{
		Span: time.Minute,
		Stability: config.StabilityConfig{
			Threshold:  0.5,
			MinSamples: 3,
		},
	})
	require.NoError(t, err)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base, 20.0))
	agg.Ingest(reading(base.Add(time.Second), 20.2))
	assert.False(t, agg.CurrentTrend().Stable, "below min_samples")

	agg.Ingest(reading(base.Add(2*time.Second), 20.4))
	assert.True(t, agg.CurrentTrend().Stable)

	agg.Ingest(reading(base.Add(3*time.Second), 21.0))
	assert.False(t, agg.CurrentTrend().Stable, "range exceeds threshold")
}

func TestStabilityDisabledWithoutThreshold(t *testing.T) {
	agg := newTestAggregator(t, time.Minute, 0)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	agg.Ingest(reading(base, 20.0))
	agg.Ingest(reading(base.Add(time.Second), 20.0))

	assert.False(t, agg.CurrentTrend().Stable)
}
