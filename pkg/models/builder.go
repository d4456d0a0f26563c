package models

import "time"

type EnvelopeBuilder struct {
	envelope *Envelope
}

func NewEnvelopeBuilder() *EnvelopeBuilder {
	return &EnvelopeBuilder{
		envelope: &Envelope{
			Payload: make(map[string]interface{}),
		},
	}
}

func (b *EnvelopeBuilder) WithProducerID(producerID string) *EnvelopeBuilder {
	b.envelope.ProducerID = producerID
	return b
}

func (b *EnvelopeBuilder) WithSequenceID(sequenceID int64) *EnvelopeBuilder {
	b.envelope.SequenceID = sequenceID
	return b
}

func (b *EnvelopeBuilder) WithTimestamp(timestamp time.Time) *EnvelopeBuilder {
	b.envelope.Timestamp = timestamp
	return b
}

func (b *EnvelopeBuilder) WithPayload(payload map[string]interface{}) *EnvelopeBuilder {
	b.envelope.Payload = payload
	return b
}

func (b *EnvelopeBuilder) WithField(key string, value interface{}) *EnvelopeBuilder {
	b.envelope.Payload[key] = value
	return b
}

func (b *EnvelopeBuilder) Build() *Envelope {
	if b.envelope.Timestamp.IsZero() {
		b.envelope.Timestamp = time.Now()
	}
	return b.envelope
}
