package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"sensorflow/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("broker.kafka.readings_topic", constants.DefaultReadingsTopic)
	viper.SetDefault("broker.kafka.dlq_topic", constants.DefaultDLQTopic)

	viper.SetDefault("publisher.max_in_flight", constants.DefaultMaxInFlight)

	viper.SetDefault("subscriber.batch_size", constants.DefaultBatchSize)
	viper.SetDefault("subscriber.poll_timeout", constants.DefaultPollTimeout)
	viper.SetDefault("subscriber.dedup_window", constants.DefaultDedupWindow)

	viper.SetDefault("window.span", constants.DefaultWindowSpan)
	viper.SetDefault("window.lateness", constants.DefaultLateness)
	viper.SetDefault("window.value_field", constants.DefaultValueField)

	viper.SetDefault("source.interval", constants.DefaultSourceInterval)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.readings_topic", "BROKER_KAFKA_READINGS_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")
	viper.BindEnv("broker.kafka.required_acks", "BROKER_KAFKA_REQUIRED_ACKS")

	viper.BindEnv("publisher.producer_id", "PUBLISHER_PRODUCER_ID")
	viper.BindEnv("publisher.max_in_flight", "PUBLISHER_MAX_IN_FLIGHT")

	viper.BindEnv("window.span", "WINDOW_SPAN")
	viper.BindEnv("window.lateness", "WINDOW_LATENESS")
	viper.BindEnv("window.value_field", "WINDOW_VALUE_FIELD")

	viper.BindEnv("source.type", "SOURCE_TYPE")
	viper.BindEnv("source.path", "SOURCE_PATH")
	viper.BindEnv("source.interval", "SOURCE_INTERVAL")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	return nil
}
