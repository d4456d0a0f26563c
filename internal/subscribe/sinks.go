package subscribe

import (
	"context"
	"fmt"
	"time"

	"sensorflow/internal/broker"
	"sensorflow/internal/logger"
	"sensorflow/pkg/metrics"
	"sensorflow/pkg/models"
)

// ErrorSink receives records that could not be decoded. The subscriber
// skips past them; the sink decides what to keep.
type ErrorSink interface {
	HandleDecodeError(ctx context.Context, record broker.Record, err error)
}

// DeadLetterSink receives envelopes whose handler exhausted its retries.
type DeadLetterSink interface {
	HandleDeadLetter(ctx context.Context, envelope models.Envelope, cause error) error
}

// LogErrorSink reports decode failures through the logger.
type LogErrorSink struct {
	logger logger.Logger
	topic  string
}

func NewLogErrorSink(topic string, log logger.Logger) *LogErrorSink {
	return &LogErrorSink{logger: log, topic: topic}
}

func (s *LogErrorSink) HandleDecodeError(ctx context.Context, record broker.Record, err error) {
	s.logger.ErrorwCtx(ctx, "Failed to decode record, skipping",
		"error", err,
		"topic", s.topic,
		"position", record.Position,
	)
}

// TopicDeadLetterSink republishes dead-lettered envelopes to a dedicated
// topic, annotated with the failure reason.
type TopicDeadLetterSink struct {
	transport broker.Transport
	topic     string
	logger    logger.Logger
}

func NewTopicDeadLetterSink(transport broker.Transport, topic string, log logger.Logger) *TopicDeadLetterSink {
	return &TopicDeadLetterSink{transport: transport, topic: topic, logger: log}
}

func (s *TopicDeadLetterSink) HandleDeadLetter(ctx context.Context, envelope models.Envelope, cause error) error {
	annotated := envelope
	annotated.Payload = make(map[string]interface{}, len(envelope.Payload)+3)
	for k, v := range envelope.Payload {
		annotated.Payload[k] = v
	}
	annotated.Payload["dlq_reason"] = cause.Error()
	annotated.Payload["dlq_source_producer"] = envelope.ProducerID
	annotated.Payload["dlq_timestamp"] = time.Now().UTC().Format(time.RFC3339)

	data, err := models.Encode(annotated)
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}

	if err := s.transport.Send(ctx, s.topic, []byte(envelope.ProducerID), data); err != nil {
		return fmt.Errorf("failed to publish dead letter: %w", err)
	}

	metrics.DLQMessagesTotal.WithLabelValues(s.topic, "max_retries_exceeded").Inc()
	s.logger.InfowCtx(ctx, "Envelope sent to dead-letter topic",
		"dlq_topic", s.topic,
		"reason", cause.Error(),
	)

	return nil
}

// LogDeadLetterSink is the fallback when no dead-letter topic is
// configured: the envelope is logged and dropped so the pipeline keeps
// moving.
type LogDeadLetterSink struct {
	logger logger.Logger
}

func NewLogDeadLetterSink(log logger.Logger) *LogDeadLetterSink {
	return &LogDeadLetterSink{logger: log}
}

func (s *LogDeadLetterSink) HandleDeadLetter(ctx context.Context, envelope models.Envelope, cause error) error {
	metrics.DLQMessagesTotal.WithLabelValues("none", "max_retries_exceeded").Inc()
	s.logger.WarnwCtx(ctx, "No dead-letter topic configured, dropping envelope",
		"producer_id", envelope.ProducerID,
		"sequence_id", envelope.SequenceID,
		"reason", cause.Error(),
	)
	return nil
}
