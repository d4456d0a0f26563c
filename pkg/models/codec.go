package models

import (
	"encoding/json"
	"fmt"
	"time"

	"sensorflow/pkg/errors"
)

// wireEnvelope is the serialized form. SequenceID is a pointer so a missing
// field can be told apart from an explicit zero.
type wireEnvelope struct {
	ProducerID string                 `json:"producer_id"`
	SequenceID *int64                 `json:"sequence_id"`
	Timestamp  string                 `json:"timestamp"`
	Payload    map[string]interface{} `json:"payload"`
}

// Encode serializes an envelope. It fails with an EncodeError when the
// timestamp is unset, the producer id is empty, or the payload holds values
// JSON cannot represent. Encode has no side effects.
func Encode(e Envelope) ([]byte, error) {
	if e.Timestamp.IsZero() {
		return nil, errors.ErrEncode.WithMessage("envelope timestamp is unset")
	}
	if e.ProducerID == "" {
		return nil, errors.ErrEncode.WithMessage("envelope producer_id is empty")
	}

	seq := e.SequenceID
	wire := wireEnvelope{
		ProducerID: e.ProducerID,
		SequenceID: &seq,
		Timestamp:  e.Timestamp.UTC().Format(time.RFC3339Nano),
		Payload:    e.Payload,
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrEncode)
	}
	return data, nil
}

// Decode parses an envelope from bytes, failing with a DecodeError on
// malformed JSON or missing required fields. Unknown payload keys are
// preserved as-is.
func Decode(data []byte) (Envelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return Envelope{}, errors.Wrap(err, errors.ErrDecode)
	}

	if wire.Timestamp == "" {
		return Envelope{}, errors.ErrDecode.WithMessage("envelope timestamp is missing")
	}
	ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
	if err != nil {
		return Envelope{}, errors.Wrap(fmt.Errorf("parsing timestamp %q: %w", wire.Timestamp, err), errors.ErrDecode)
	}
	if wire.SequenceID == nil {
		return Envelope{}, errors.ErrDecode.WithMessage("envelope sequence_id is missing")
	}
	if wire.ProducerID == "" {
		return Envelope{}, errors.ErrDecode.WithMessage("envelope producer_id is missing")
	}

	return Envelope{
		ProducerID: wire.ProducerID,
		SequenceID: *wire.SequenceID,
		Timestamp:  ts,
		Payload:    wire.Payload,
	}, nil
}
