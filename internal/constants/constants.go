package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaMinBytes     = 10e3
	KafkaMaxBytes     = 10e6
)

const (
	DefaultReadingsTopic = "sensor_readings"
	DefaultDLQTopic      = "sensor_readings_dlq"
)

const (
	DefaultPollTimeout = 1 * time.Second
	DefaultBatchSize   = 100
	DefaultMaxInFlight = 16
	DefaultDedupWindow = 1024
)

const (
	DefaultValueField = "temperature"
	DefaultWindowSpan = 10 * time.Minute
	DefaultLateness   = 1 * time.Minute
)

const (
	DefaultSourceInterval = 2 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)
