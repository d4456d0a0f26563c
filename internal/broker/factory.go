package broker

import (
	"fmt"

	"sensorflow/internal/config"
	"sensorflow/internal/logger"
)

func NewTransport(cfg config.BrokerConfig, log logger.Logger) (Transport, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaTransport(cfg.Kafka, log), nil
	case "inmem":
		return NewInMemTransport(), nil
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
