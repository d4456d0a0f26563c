package subscribe

import (
	"context"
	stderrors "errors"
	"time"

	"sensorflow/internal/broker"
	"sensorflow/internal/config"
	"sensorflow/internal/constants"
	"sensorflow/internal/logger"
	"sensorflow/pkg/errors"
	"sensorflow/pkg/logging"
	"sensorflow/pkg/metrics"
	"sensorflow/pkg/models"
	"sensorflow/pkg/retry"
)

// Handler processes one delivered envelope. A returned error triggers the
// retry policy; exhausting it routes the envelope to the dead-letter sink.
type Handler func(ctx context.Context, envelope models.Envelope) error

// Subscriber pulls records from the transport, decodes and deduplicates
// them, and delivers each surviving envelope to the handler in the order
// the transport returned them. Progress is committed per record after the
// handler succeeds, giving at-least-once delivery with restart from the
// last committed position.
type Subscriber struct {
	transport broker.Transport
	topic     string
	handler   Handler
	policy    retry.Policy
	batchSize int
	pollTO    time.Duration
	tracker   *DeliveryTracker
	errSink   ErrorSink
	dlqSink   DeadLetterSink
	logger    logger.Logger
}

func New(transport broker.Transport, topic string, handler Handler, cfg config.SubscriberConfig, log logger.Logger) (*Subscriber, error) {
	if topic == "" {
		return nil, errors.ErrConfig.WithMessage("subscriber topic is required")
	}
	if handler == nil {
		return nil, errors.ErrConfig.WithMessage("subscriber handler is required")
	}

	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = constants.DefaultBatchSize
	}
	pollTO := cfg.PollTimeout
	if pollTO <= 0 {
		pollTO = constants.DefaultPollTimeout
	}
	dedupWindow := cfg.DedupWindow
	if dedupWindow < 1 {
		dedupWindow = constants.DefaultDedupWindow
	}

	return &Subscriber{
		transport: transport,
		topic:     topic,
		handler:   handler,
		policy:    cfg.Retry.Policy(),
		batchSize: batchSize,
		pollTO:    pollTO,
		tracker:   NewDeliveryTracker(dedupWindow),
		errSink:   NewLogErrorSink(topic, log),
		dlqSink:   NewLogDeadLetterSink(log),
		logger:    log,
	}, nil
}

// WithErrorSink replaces the decode-failure sink.
func (s *Subscriber) WithErrorSink(sink ErrorSink) *Subscriber {
	s.errSink = sink
	return s
}

// WithDeadLetterSink replaces the dead-letter sink.
func (s *Subscriber) WithDeadLetterSink(sink DeadLetterSink) *Subscriber {
	s.dlqSink = sink
	return s
}

// Tracker exposes delivery progress for observability.
func (s *Subscriber) Tracker() *DeliveryTracker {
	return s.tracker
}

// Run pulls until ctx is cancelled. Cancellation is cooperative: the record
// being processed is finished and committed before Run returns.
func (s *Subscriber) Run(ctx context.Context) error {
	runCtx := logging.WithTopic(ctx, s.topic)

	position, err := s.transport.Resume(ctx, s.topic)
	if err != nil {
		return errors.Wrap(err, errors.ErrTransport)
	}
	s.logger.InfowCtx(runCtx, "Started consuming",
		"resume_position", position,
		"batch_size", s.batchSize,
	)

	for {
		if ctx.Err() != nil {
			s.logger.InfowCtx(runCtx, "Stopped consuming", "reason", "context canceled")
			return ctx.Err()
		}

		pollCtx, cancel := context.WithTimeout(ctx, s.pollTO)
		records, err := s.transport.Poll(pollCtx, s.topic, s.batchSize)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if stderrors.Is(err, context.DeadlineExceeded) {
				// Empty poll interval, nothing to read yet.
				continue
			}
			s.logger.ErrorwCtx(runCtx, "Error polling transport",
				"error", err,
			)
			time.Sleep(time.Second)
			continue
		}

		for _, record := range records {
			s.handleRecord(ctx, record)
			if ctx.Err() != nil {
				break
			}
		}
	}
}

func (s *Subscriber) handleRecord(ctx context.Context, record broker.Record) {
	envelope, err := models.Decode(record.Value)
	if err != nil {
		metrics.DecodeFailuresTotal.WithLabelValues(s.topic).Inc()
		metrics.DeliveredTotal.WithLabelValues(s.topic, "decode_error").Inc()
		s.errSink.HandleDecodeError(logging.WithTopic(ctx, s.topic), record, err)
		s.commit(ctx, record.Position)
		return
	}

	msgCtx := logging.WithTopic(ctx, s.topic)
	msgCtx = logging.WithProducerID(msgCtx, envelope.ProducerID)
	msgCtx = logging.WithSequenceID(msgCtx, envelope.SequenceID)

	if !s.tracker.Observe(envelope.ProducerID, envelope.SequenceID) {
		metrics.DuplicatesTotal.WithLabelValues(s.topic).Inc()
		metrics.DeliveredTotal.WithLabelValues(s.topic, "duplicate").Inc()
		s.commit(ctx, record.Position)
		return
	}

	start := time.Now()
	err = s.deliverWithRetry(msgCtx, envelope)
	if err != nil {
		metrics.ObserveHandlerDuration(s.topic, "dead_lettered", time.Since(start))
		metrics.DeliveredTotal.WithLabelValues(s.topic, "dead_lettered").Inc()
		s.logger.ErrorwCtx(msgCtx, "Failed to process envelope after retries",
			"error", err,
		)
		if dlqErr := s.dlqSink.HandleDeadLetter(msgCtx, envelope, err); dlqErr != nil {
			s.logger.ErrorwCtx(msgCtx, "Failed to route envelope to dead-letter sink",
				"error", dlqErr,
			)
		}
		s.commit(ctx, record.Position)
		return
	}

	metrics.ObserveHandlerDuration(s.topic, "processed", time.Since(start))
	metrics.DeliveredTotal.WithLabelValues(s.topic, "processed").Inc()
	s.commit(ctx, record.Position)
}

func (s *Subscriber) deliverWithRetry(ctx context.Context, envelope models.Envelope) error {
	return retry.RetryWithCallback(ctx, s.policy, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.RecoverPanic(r)
				s.logger.ErrorwCtx(ctx, "Panic recovered during envelope processing",
					"error", err,
				)
			}
		}()
		return s.handler(ctx, envelope)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.HandlerRetriesTotal.WithLabelValues(s.topic).Inc()
		s.logger.WarnwCtx(ctx, "Retrying envelope processing",
			"attempt", attempt,
			"max_attempts", s.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", err,
		)
	})
}

// commit uses a detached context with a short timeout so progress made
// before a shutdown signal is still recorded.
func (s *Subscriber) commit(ctx context.Context, position broker.Position) {
	commitCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
	}

	if err := s.transport.Commit(commitCtx, s.topic, position); err != nil {
		s.logger.ErrorwCtx(logging.WithTopic(ctx, s.topic), "Failed to commit position",
			"error", err,
			"position", position,
		)
	}
}
