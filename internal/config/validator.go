package config

import (
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateStatic rejects misconfiguration before any I/O begins. Anything
// it accepts is safe to hand to the core at construction time.
func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validatePublisher(cfg.Publisher); err != nil {
		errors = append(errors, err)
	}

	if err := validateSubscriber(cfg.Subscriber); err != nil {
		errors = append(errors, err)
	}

	if err := validateWindow(cfg.Window); err != nil {
		errors = append(errors, err)
	}

	if err := validateSource(cfg.Source); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "kafka":
		return validateKafka(cfg.Kafka)
	case "inmem":
		return nil
	case "":
		return &ValidationError{
			Field:   "broker.type",
			Message: "broker type is required",
		}
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka, inmem)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.ReadingsTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.readings_topic",
			Message: "readings topic is required",
		}
	}

	validAcks := map[string]bool{"": true, "one": true, "all": true, "none": true}
	if !validAcks[strings.ToLower(cfg.RequiredAcks)] {
		return &ValidationError{
			Field:   "broker.kafka.required_acks",
			Message: fmt.Sprintf("invalid required_acks value: %s (valid: none, one, all)", cfg.RequiredAcks),
		}
	}

	if cfg.SendTimeout < 0 {
		return &ValidationError{
			Field:   "broker.kafka.send_timeout",
			Message: "send_timeout must be non-negative",
		}
	}

	return nil
}

func validatePublisher(cfg PublisherConfig) error {
	if cfg.MaxInFlight < 1 {
		return &ValidationError{
			Field:   "publisher.max_in_flight",
			Message: fmt.Sprintf("max_in_flight must be at least 1, got %d", cfg.MaxInFlight),
		}
	}

	return validateRetry("publisher.retry", cfg.Retry)
}

func validateSubscriber(cfg SubscriberConfig) error {
	if cfg.BatchSize < 1 {
		return &ValidationError{
			Field:   "subscriber.batch_size",
			Message: fmt.Sprintf("batch_size must be at least 1, got %d", cfg.BatchSize),
		}
	}

	if cfg.PollTimeout < 0 {
		return &ValidationError{
			Field:   "subscriber.poll_timeout",
			Message: "poll_timeout must be non-negative",
		}
	}

	if cfg.DedupWindow < 1 {
		return &ValidationError{
			Field:   "subscriber.dedup_window",
			Message: fmt.Sprintf("dedup_window must be at least 1, got %d", cfg.DedupWindow),
		}
	}

	return validateRetry("subscriber.retry", cfg.Retry)
}

func validateRetry(field string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   field + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   field + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   field + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier < 0 {
		return &ValidationError{
			Field:   field + ".multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateWindow(cfg WindowConfig) error {
	if cfg.Span <= 0 {
		return &ValidationError{
			Field:   "window.span",
			Message: "window span must be positive",
		}
	}

	if cfg.Lateness < 0 {
		return &ValidationError{
			Field:   "window.lateness",
			Message: "lateness tolerance must be non-negative",
		}
	}

	if cfg.Stability.Threshold < 0 {
		return &ValidationError{
			Field:   "window.stability.threshold",
			Message: "stability threshold must be non-negative",
		}
	}

	if cfg.Stability.MinSamples < 0 {
		return &ValidationError{
			Field:   "window.stability.min_samples",
			Message: "stability min_samples must be non-negative",
		}
	}

	return nil
}

func validateSource(cfg SourceConfig) error {
	switch cfg.Type {
	case "", "synthetic":
	case "csv":
		if cfg.Path == "" {
			return &ValidationError{
				Field:   "source.path",
				Message: "CSV source requires a file path",
			}
		}
	default:
		return &ValidationError{
			Field:   "source.type",
			Message: fmt.Sprintf("unknown source type: %s (supported: csv, synthetic)", cfg.Type),
		}
	}

	if cfg.Interval < 0 {
		return &ValidationError{
			Field:   "source.interval",
			Message: "interval must be non-negative",
		}
	}

	return nil
}
