package publish

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"sensorflow/internal/broker"
	"sensorflow/internal/config"
	"sensorflow/internal/logger"
	"sensorflow/pkg/circuitbreaker"
	"sensorflow/pkg/errors"
	"sensorflow/pkg/logging"
	"sensorflow/pkg/metrics"
	"sensorflow/pkg/models"
	"sensorflow/pkg/retry"
)

// Ack confirms the transport durably accepted an envelope.
type Ack struct {
	Topic      string
	SequenceID int64
	AckedAt    time.Time
}

// Publisher assigns per-topic sequence ids and hands encoded envelopes to
// the transport with bounded in-flight concurrency and retry.
//
// Sequence ids are assigned under a lock at publish entry, so assignment
// order is send order even when acknowledgements complete out of order.
type Publisher struct {
	transport  broker.Transport
	producerID string
	policy     retry.Policy
	slots      *semaphore.Weighted
	breaker    *circuitbreaker.Wrapper
	logger     logger.Logger

	mu        sync.Mutex
	sequences map[string]int64 // last assigned id per topic
}

func New(transport broker.Transport, cfg config.PublisherConfig, log logger.Logger) (*Publisher, error) {
	if cfg.MaxInFlight < 1 {
		return nil, errors.ErrConfig.WithMessage("publisher max_in_flight must be at least 1")
	}
	if cfg.ProducerID == "" {
		return nil, errors.ErrConfig.WithMessage("publisher producer_id is required")
	}

	return &Publisher{
		transport:  transport,
		producerID: cfg.ProducerID,
		policy:     cfg.Retry.Policy(),
		slots:      semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		logger:     log,
		sequences:  make(map[string]int64),
	}, nil
}

// WithBreaker routes transport sends through a circuit breaker.
func (p *Publisher) WithBreaker(breaker *circuitbreaker.Wrapper) *Publisher {
	p.breaker = breaker
	return p
}

// SetLastAcknowledged seeds the sequence counter for a topic, used on
// startup to continue from durable state instead of 0.
func (p *Publisher) SetLastAcknowledged(topic string, sequenceID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sequenceID > p.sequences[topic] {
		p.sequences[topic] = sequenceID
	}
}

func (p *Publisher) nextSequence(topic string) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sequences[topic]++
	return p.sequences[topic]
}

// returnSequence gives a sequence slot back after a failed encode, so a
// rejected envelope does not leave a permanent gap in the id stream. Only
// possible while no later id has been handed out.
func (p *Publisher) returnSequence(topic string, sequenceID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sequences[topic] == sequenceID {
		p.sequences[topic] = sequenceID - 1
	}
}

// Publish blocks while all in-flight slots are taken, then encodes and
// sends the reading. The returned Ack means the transport confirmed durable
// receipt at its configured acknowledgement level; on retry exhaustion the
// error is a PublishError wrapping the last transport failure.
func (p *Publisher) Publish(ctx context.Context, topic string, ts time.Time, payload map[string]interface{}) (Ack, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return Ack{}, err
	}
	defer p.slots.Release(1)

	metrics.PublishInFlight.WithLabelValues(topic).Inc()
	defer metrics.PublishInFlight.WithLabelValues(topic).Dec()

	if ts.IsZero() {
		ts = time.Now()
	}

	sequenceID := p.nextSequence(topic)
	envelope := models.Envelope{
		ProducerID: p.producerID,
		SequenceID: sequenceID,
		Timestamp:  ts,
		Payload:    payload,
	}

	data, err := models.Encode(envelope)
	if err != nil {
		p.returnSequence(topic, sequenceID)
		metrics.PublishedTotal.WithLabelValues(topic, "encode_error").Inc()
		return Ack{}, err
	}

	pubCtx := logging.WithProducerID(ctx, p.producerID)
	pubCtx = logging.WithTopic(pubCtx, topic)
	pubCtx = logging.WithSequenceID(pubCtx, sequenceID)

	start := time.Now()
	err = retry.RetryWithCallback(ctx, p.policy, func() error {
		return p.send(ctx, topic, data)
	}, func(attempt int, attemptErr error, nextDelay time.Duration) {
		metrics.PublishRetriesTotal.WithLabelValues(topic).Inc()
		p.logger.WarnwCtx(pubCtx, "Retrying publish",
			"attempt", attempt,
			"max_attempts", p.policy.MaxAttempts,
			"next_delay", nextDelay,
			"error", attemptErr,
		)
	})
	if err != nil {
		metrics.PublishedTotal.WithLabelValues(topic, "failure").Inc()
		p.logger.ErrorwCtx(pubCtx, "Publish failed after retries",
			"error", err,
		)
		return Ack{}, errors.Wrap(err, errors.ErrPublish)
	}

	ackedAt := time.Now()
	metrics.PublishedTotal.WithLabelValues(topic, "success").Inc()
	metrics.ObserveAckDuration(topic, ackedAt.Sub(start))

	return Ack{
		Topic:      topic,
		SequenceID: sequenceID,
		AckedAt:    ackedAt,
	}, nil
}

func (p *Publisher) send(ctx context.Context, topic string, data []byte) error {
	if p.breaker == nil {
		return p.transport.Send(ctx, topic, []byte(p.producerID), data)
	}

	_, err := p.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		return nil, p.transport.Send(ctx, topic, []byte(p.producerID), data)
	})
	p.breaker.RecordRequest(err == nil)
	return err
}
