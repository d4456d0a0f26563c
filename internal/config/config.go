package config

import (
	"time"

	"sensorflow/pkg/retry"
)

type Config struct {
	Server         ServerConfig
	Broker         BrokerConfig
	Publisher      PublisherConfig
	Subscriber     SubscriberConfig
	Window         WindowConfig
	Source         SourceConfig
	Logging        LoggingConfig
	CircuitBreaker CircuitBreakerConfig
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers       []string      `mapstructure:"brokers"`
	GroupID       string        `mapstructure:"group_id"`
	ReadingsTopic string        `mapstructure:"readings_topic"`
	DLQTopic      string        `mapstructure:"dlq_topic"`
	RequiredAcks  string        `mapstructure:"required_acks"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
}

type PublisherConfig struct {
	ProducerID  string      `mapstructure:"producer_id"`
	MaxInFlight int         `mapstructure:"max_in_flight"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type SubscriberConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	DedupWindow int           `mapstructure:"dedup_window"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

type WindowConfig struct {
	Span       time.Duration   `mapstructure:"span"`
	Lateness   time.Duration   `mapstructure:"lateness"`
	ValueField string          `mapstructure:"value_field"`
	Stability  StabilityConfig `mapstructure:"stability"`
}

type StabilityConfig struct {
	Threshold  float64 `mapstructure:"threshold"`
	MinSamples int     `mapstructure:"min_samples"`
}

type SourceConfig struct {
	Type     string        `mapstructure:"type"`
	Path     string        `mapstructure:"path"`
	Interval time.Duration `mapstructure:"interval"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

// Policy fills unset fields from the default retry policy.
func (c RetryConfig) Policy() retry.Policy {
	policy := retry.DefaultPolicy()
	if c.MaxAttempts > 0 {
		policy.MaxAttempts = c.MaxAttempts
	}
	if c.InitialInterval > 0 {
		policy.InitialInterval = c.InitialInterval
	}
	if c.MaxInterval > 0 {
		policy.MaxInterval = c.MaxInterval
	}
	if c.Multiplier > 0 {
		policy.Multiplier = c.Multiplier
	}
	if c.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = c.MaxElapsedTime
	}
	return policy
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
