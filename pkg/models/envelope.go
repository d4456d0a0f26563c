package models

import (
	"encoding/json"
	"time"
)

// Envelope is the unit of transport through the pipeline. Envelopes are
// immutable once built: the publisher assigns SequenceID exactly once and
// nothing downstream mutates them.
type Envelope struct {
	ProducerID string                 `json:"producer_id"`
	SequenceID int64                  `json:"sequence_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Payload    map[string]interface{} `json:"payload"`
}

// Value returns the named numeric payload field, converting the scalar
// types a decoded JSON payload can carry.
func (e Envelope) Value(field string) (float64, bool) {
	raw, ok := e.Payload[field]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
