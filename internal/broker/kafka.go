package broker

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"sensorflow/internal/config"
	"sensorflow/internal/constants"
	"sensorflow/internal/logger"
	"sensorflow/pkg/errors"
)

// KafkaTransport implements Transport on segmentio/kafka-go. One writer is
// shared across topics; readers are created per topic on first poll.
type KafkaTransport struct {
	cfg    config.KafkaConfig
	writer *kafka.Writer
	logger logger.Logger

	mu      sync.Mutex
	readers map[string]*kafka.Reader
	pending map[string]map[Position]kafka.Message
}

func NewKafkaTransport(cfg config.KafkaConfig, log logger.Logger) *KafkaTransport {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: constants.KafkaBatchTimeout,
		WriteTimeout: constants.KafkaWriteTimeout,
		RequiredAcks: requiredAcks(cfg.RequiredAcks),
		Async:        false,
	}
	return &KafkaTransport{
		cfg:     cfg,
		writer:  w,
		logger:  log,
		readers: make(map[string]*kafka.Reader),
		pending: make(map[string]map[Position]kafka.Message),
	}
}

func requiredAcks(level string) kafka.RequiredAcks {
	switch level {
	case "none":
		return kafka.RequireNone
	case "one":
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

func (t *KafkaTransport) Send(ctx context.Context, topic string, key, value []byte) error {
	if t.cfg.SendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.SendTimeout)
		defer cancel()
	}

	err := t.writer.WriteMessages(ctx,
		kafka.Message{
			Topic: topic,
			Key:   key,
			Value: value,
			Time:  time.Now(),
		},
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrTransport)
	}

	return nil
}

func (t *KafkaTransport) reader(topic string) *kafka.Reader {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r, ok := t.readers[topic]; ok {
		return r
	}

	t.logger.Infow("Creating Kafka reader",
		"topic", topic,
		"brokers", t.cfg.Brokers,
		"group_id", t.cfg.GroupID,
	)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  t.cfg.Brokers,
		GroupID:  t.cfg.GroupID,
		Topic:    topic,
		MinBytes: constants.KafkaMinBytes,
		MaxBytes: constants.KafkaMaxBytes,
	})
	t.readers[topic] = r
	t.pending[topic] = make(map[Position]kafka.Message)
	return r
}

// Poll fetches up to maxRecords. The first fetch blocks on ctx; once a
// record arrives the rest of the batch is drained with a short deadline so
// a slow topic cannot stall delivery of what is already buffered.
func (t *KafkaTransport) Poll(ctx context.Context, topic string, maxRecords int) ([]Record, error) {
	r := t.reader(topic)

	var records []Record
	for len(records) < maxRecords {
		fetchCtx := ctx
		var cancel context.CancelFunc
		if len(records) > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, 10*time.Millisecond)
		}

		m, err := r.FetchMessage(fetchCtx)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			if len(records) > 0 {
				return records, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Wrap(err, errors.ErrTransport)
		}

		pos := Position(m.Offset)
		t.mu.Lock()
		t.pending[topic][pos] = m
		t.mu.Unlock()

		records = append(records, Record{
			Position: pos,
			Key:      m.Key,
			Value:    m.Value,
		})
	}

	return records, nil
}

func (t *KafkaTransport) Commit(ctx context.Context, topic string, position Position) error {
	t.mu.Lock()
	m, ok := t.pending[topic][position]
	if ok {
		for pos := range t.pending[topic] {
			if pos <= position {
				delete(t.pending[topic], pos)
			}
		}
	}
	r := t.readers[topic]
	t.mu.Unlock()

	if !ok || r == nil {
		return errors.ErrTransport.WithMessage("commit for unknown position")
	}

	if err := r.CommitMessages(ctx, m); err != nil {
		return errors.Wrap(err, errors.ErrTransport)
	}
	return nil
}

// Resume reports the position consumption will restart from. With
// group-managed offsets the broker tracks this server-side, so the reader
// resumes on its own; the returned position is informational.
func (t *KafkaTransport) Resume(ctx context.Context, topic string) (Position, error) {
	r := t.reader(topic)
	offset := r.Offset()
	if offset < 0 {
		return 0, nil
	}
	return Position(offset), nil
}

func (t *KafkaTransport) Close() error {
	var err error
	if closeErr := t.writer.Close(); closeErr != nil {
		err = closeErr
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.readers {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
