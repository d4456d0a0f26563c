package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_messages_total",
			Help: "Total number of envelopes handed to the publisher (count)",
		},
		[]string{"topic", "status"},
	)

	PublishRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publisher_retries_total",
			Help: "Total number of publish retry attempts (count)",
		},
		[]string{"topic"},
	)

	PublishAckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publisher_ack_duration_ms",
			Help:    "Time from send to transport acknowledgement in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"topic"},
	)

	PublishInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "publisher_in_flight",
			Help: "Number of publishes currently awaiting acknowledgement (count)",
		},
		[]string{"topic"},
	)

	DeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_messages_total",
			Help: "Total number of records handled by the subscriber (count)",
		},
		[]string{"topic", "status"},
	)

	DuplicatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_duplicates_total",
			Help: "Total number of records dropped as already delivered (count)",
		},
		[]string{"topic"},
	)

	DecodeFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_decode_failures_total",
			Help: "Total number of records skipped because decoding failed (count)",
		},
		[]string{"topic"},
	)

	HandlerRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_handler_retries_total",
			Help: "Total number of handler retry attempts (count)",
		},
		[]string{"topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriber_dlq_messages_total",
			Help: "Total number of records routed to the dead-letter sink (count)",
		},
		[]string{"topic", "reason"},
	)

	HandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subscriber_handler_duration_ms",
			Help:    "Handler processing duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"topic", "status"},
	)

	WindowSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trend_window_size",
			Help: "Number of samples currently retained in the trend window (count)",
		},
	)

	DroppedLateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trend_dropped_late_total",
			Help: "Total number of readings dropped as too late (count)",
		},
	)

	IngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trend_ingested_total",
			Help: "Total number of readings ingested into the trend window (count)",
		},
		[]string{"status"},
	)

	WatermarkAge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trend_watermark_age_seconds",
			Help: "Age of the high watermark relative to wall clock (seconds)",
		},
	)

	SourceRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_rows_total",
			Help: "Total number of rows read from the reading source (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

func RegisterPublisherMetrics() {
	prometheus.MustRegister(PublishedTotal)
	prometheus.MustRegister(PublishRetriesTotal)
	prometheus.MustRegister(PublishAckDuration)
	prometheus.MustRegister(PublishInFlight)
	prometheus.MustRegister(SourceRowsTotal)
}

func RegisterSubscriberMetrics() {
	prometheus.MustRegister(DeliveredTotal)
	prometheus.MustRegister(DuplicatesTotal)
	prometheus.MustRegister(DecodeFailuresTotal)
	prometheus.MustRegister(HandlerRetriesTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(HandlerDuration)
}

func RegisterTrendMetrics() {
	prometheus.MustRegister(WindowSize)
	prometheus.MustRegister(DroppedLateTotal)
	prometheus.MustRegister(IngestedTotal)
	prometheus.MustRegister(WatermarkAge)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveAckDuration(topic string, duration time.Duration) {
	PublishAckDuration.WithLabelValues(topic).Observe(float64(duration.Milliseconds()))
}

func ObserveHandlerDuration(topic, status string, duration time.Duration) {
	HandlerDuration.WithLabelValues(topic, status).Observe(float64(duration.Milliseconds()))
}

func SetWindowSize(size int) {
	WindowSize.Set(float64(size))
}

func SetWatermarkAge(age time.Duration) {
	WatermarkAge.Set(age.Seconds())
}
