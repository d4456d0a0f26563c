package trend

import (
	"sort"
	"sync"
	"time"

	"sensorflow/internal/config"
	"sensorflow/internal/constants"
	"sensorflow/pkg/errors"
	"sensorflow/pkg/metrics"
	"sensorflow/pkg/models"
)

type sample struct {
	ts    time.Time
	value float64
}

// TrendResult is the moving statistic over the retained window. Slope is
// the least-squares regression of value against elapsed seconds; it is only
// meaningful when SlopeValid is set (at least two samples).
type TrendResult struct {
	Mean        float64 `json:"mean"`
	Slope       float64 `json:"slope"`
	SlopeValid  bool    `json:"slope_valid"`
	SampleCount int     `json:"sample_count"`
	Stable      bool    `json:"stable"`
	DroppedLate uint64  `json:"dropped_late"`
}

// Aggregator keeps a time-bounded window of readings sorted by timestamp
// and computes the running trend over it. It tolerates out-of-order arrival
// up to the lateness bound; older readings are dropped and counted, never
// an error.
//
// The aggregator trusts the subscriber's dedup guarantee and does not
// re-check sequence ids.
type Aggregator struct {
	mu sync.Mutex

	span       time.Duration
	lateness   time.Duration
	valueField string

	stabilityThreshold  float64
	stabilityMinSamples int

	window        []sample
	highWatermark time.Time
	droppedLate   uint64
}

func NewAggregator(cfg config.WindowConfig) (*Aggregator, error) {
	if cfg.Span <= 0 {
		return nil, errors.ErrConfig.WithMessage("window span must be positive")
	}
	if cfg.Lateness < 0 {
		return nil, errors.ErrConfig.WithMessage("lateness tolerance must be non-negative")
	}

	valueField := cfg.ValueField
	if valueField == "" {
		valueField = constants.DefaultValueField
	}
	minSamples := cfg.Stability.MinSamples
	if minSamples < 2 {
		minSamples = 2
	}

	return &Aggregator{
		span:                cfg.Span,
		lateness:            cfg.Lateness,
		valueField:          valueField,
		stabilityThreshold:  cfg.Stability.Threshold,
		stabilityMinSamples: minSamples,
	}, nil
}

// Ingest inserts the envelope's reading at its sorted position and evicts
// entries that fell out of the window. Readings older than the lateness
// bound are dropped and counted; readings without the value field are
// skipped. Ingest never fails.
func (a *Aggregator) Ingest(envelope models.Envelope) {
	value, ok := envelope.Value(a.valueField)
	if !ok {
		metrics.IngestedTotal.WithLabelValues("missing_value").Inc()
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ts := envelope.Timestamp
	if ts.After(a.highWatermark) {
		a.highWatermark = ts
	}

	// Threshold for acceptance is hw - W - L; eviction happens at hw - W.
	if ts.Before(a.highWatermark.Add(-a.span - a.lateness)) {
		a.droppedLate++
		metrics.DroppedLateTotal.Inc()
		metrics.IngestedTotal.WithLabelValues("dropped_late").Inc()
		return
	}

	idx := sort.Search(len(a.window), func(i int) bool {
		return a.window[i].ts.After(ts)
	})
	a.window = append(a.window, sample{})
	copy(a.window[idx+1:], a.window[idx:])
	a.window[idx] = sample{ts: ts, value: value}

	a.evict()

	metrics.IngestedTotal.WithLabelValues("ingested").Inc()
	metrics.SetWindowSize(len(a.window))
	metrics.SetWatermarkAge(time.Since(a.highWatermark))
}

// evict drops entries older than highWatermark - span. The window is
// sorted, so eviction only trims the front.
func (a *Aggregator) evict() {
	cutoff := a.highWatermark.Add(-a.span)
	i := 0
	for i < len(a.window) && a.window[i].ts.Before(cutoff) {
		i++
	}
	if i > 0 {
		a.window = a.window[i:]
	}
}

// CurrentTrend computes mean and least-squares slope over the retained
// window. With fewer than two samples the slope is reported as invalid
// rather than a numeric error.
func (a *Aggregator) CurrentTrend() TrendResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.window)
	result := TrendResult{
		SampleCount: n,
		DroppedLate: a.droppedLate,
	}
	if n == 0 {
		return result
	}

	var sumV float64
	for _, s := range a.window {
		sumV += s.value
	}
	result.Mean = sumV / float64(n)
	result.Stable = a.stableLocked()

	if n < 2 {
		return result
	}

	// Regress value against seconds elapsed since the oldest sample.
	origin := a.window[0].ts
	var sumT, sumTT, sumTV float64
	for _, s := range a.window {
		t := s.ts.Sub(origin).Seconds()
		sumT += t
		sumTT += t * t
		sumTV += t * s.value
	}

	fn := float64(n)
	denom := fn*sumTT - sumT*sumT
	if denom == 0 {
		// All samples share one timestamp; no slope to speak of.
		return result
	}

	result.Slope = (fn*sumTV - sumT*sumV) / denom
	result.SlopeValid = true
	return result
}

// stableLocked reports whether the window's value range is within the
// stability threshold, given enough samples. Callers hold a.mu.
func (a *Aggregator) stableLocked() bool {
	if a.stabilityThreshold <= 0 || len(a.window) < a.stabilityMinSamples {
		return false
	}

	minV, maxV := a.window[0].value, a.window[0].value
	for _, s := range a.window[1:] {
		if s.value < minV {
			minV = s.value
		}
		if s.value > maxV {
			maxV = s.value
		}
	}
	return maxV-minV <= a.stabilityThreshold
}

// DroppedLate returns the count of readings rejected as too late.
func (a *Aggregator) DroppedLate() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.droppedLate
}

// SampleCount returns the number of samples currently retained.
func (a *Aggregator) SampleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.window)
}
