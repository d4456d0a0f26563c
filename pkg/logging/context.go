package logging

import (
	"context"
)

type contextKey string

const (
	ProducerIDKey  contextKey = "producer_id"
	TopicKey       contextKey = "topic"
	SequenceIDKey  contextKey = "sequence_id"
	ServiceNameKey contextKey = "service_name"
)

func WithProducerID(ctx context.Context, producerID string) context.Context {
	return context.WithValue(ctx, ProducerIDKey, producerID)
}

func WithTopic(ctx context.Context, topic string) context.Context {
	return context.WithValue(ctx, TopicKey, topic)
}

func WithSequenceID(ctx context.Context, sequenceID int64) context.Context {
	return context.WithValue(ctx, SequenceIDKey, sequenceID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func GetProducerID(ctx context.Context) string {
	if producerID, ok := ctx.Value(ProducerIDKey).(string); ok {
		return producerID
	}
	return ""
}

func GetTopic(ctx context.Context) string {
	if topic, ok := ctx.Value(TopicKey).(string); ok {
		return topic
	}
	return ""
}

func GetSequenceID(ctx context.Context) (int64, bool) {
	sequenceID, ok := ctx.Value(SequenceIDKey).(int64)
	return sequenceID, ok
}

func GetServiceName(ctx context.Context) string {
	if serviceName, ok := ctx.Value(ServiceNameKey).(string); ok {
		return serviceName
	}
	return ""
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if producerID := GetProducerID(ctx); producerID != "" {
		fields = append(fields, "producer_id", producerID)
	}

	if topic := GetTopic(ctx); topic != "" {
		fields = append(fields, "topic", topic)
	}

	if sequenceID, ok := GetSequenceID(ctx); ok {
		fields = append(fields, "sequence_id", sequenceID)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}

	return fields
}
