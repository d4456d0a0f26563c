package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sensorflow/pkg/errors"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		envelope Envelope
	}{
		{
			name: "sensor reading",
			envelope: Envelope{
				ProducerID: "sensor-1",
				SequenceID: 42,
				Timestamp:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
				Payload: map[string]interface{}{
					"temperature": 21.5,
					"humidity":    48.0,
					"pressure":    1013.2,
				},
			},
		},
		{
			name: "zero sequence id",
			envelope: Envelope{
				ProducerID: "sensor-2",
				SequenceID: 0,
				Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 123456789, time.UTC),
				Payload:    map[string]interface{}{"temperature": -4.25},
			},
		},
		{
			name: "unknown keys preserved",
			envelope: Envelope{
				ProducerID: "sensor-3",
				SequenceID: 7,
				Timestamp:  time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC),
				Payload: map[string]interface{}{
					"temperature": 19.0,
					"site":        "roof",
					"calibrated":  true,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.envelope)
			require.NoError(t, err)

			decoded, err := Decode(data)
			require.NoError(t, err)

			assert.Equal(t, tt.envelope.ProducerID, decoded.ProducerID)
			assert.Equal(t, tt.envelope.SequenceID, decoded.SequenceID)
			assert.True(t, tt.envelope.Timestamp.Equal(decoded.Timestamp))
			assert.Equal(t, tt.envelope.Payload, decoded.Payload)
		})
	}
}

func TestEncodeValidation(t *testing.T) {
	tests := []struct {
		name     string
		envelope Envelope
	}{
		{
			name: "zero timestamp",
			envelope: Envelope{
				ProducerID: "sensor-1",
				SequenceID: 1,
				Payload:    map[string]interface{}{"temperature": 20.0},
			},
		},
		{
			name: "empty producer id",
			envelope: Envelope{
				SequenceID: 1,
				Timestamp:  time.Now(),
				Payload:    map[string]interface{}{"temperature": 20.0},
			},
		},
		{
			name: "unserializable payload value",
			envelope: Envelope{
				ProducerID: "sensor-1",
				SequenceID: 1,
				Timestamp:  time.Now(),
				Payload:    map[string]interface{}{"bad": make(chan int)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.envelope)
			require.Error(t, err)
			assert.True(t, errors.IsEncode(err))
		})
	}
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{
			name: "not json",
			data: []byte("not json at all"),
		},
		{
			name: "missing timestamp",
			data: []byte(`{"producer_id":"sensor-1","sequence_id":1,"payload":{}}`),
		},
		{
			name: "unparsable timestamp",
			data: []byte(`{"producer_id":"sensor-1","sequence_id":1,"timestamp":"yesterday","payload":{}}`),
		},
		{
			name: "missing sequence id",
			data: []byte(`{"producer_id":"sensor-1","timestamp":"2026-03-14T09:26:53Z","payload":{}}`),
		},
		{
			name: "missing producer id",
			data: []byte(`{"sequence_id":1,"timestamp":"2026-03-14T09:26:53Z","payload":{}}`),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.True(t, errors.IsDecode(err))
		})
	}
}

func TestEnvelopeValue(t *testing.T) {
	e := Envelope{
		Payload: map[string]interface{}{
			"temperature": 21.5,
			"count":       3,
			"site":        "roof",
		},
	}

	v, ok := e.Value("temperature")
	assert.True(t, ok)
	assert.Equal(t, 21.5, v)

	v, ok = e.Value("count")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)

	_, ok = e.Value("site")
	assert.False(t, ok)

	_, ok = e.Value("missing")
	assert.False(t, ok)
}

func TestBuilderDefaultsTimestamp(t *testing.T) {
	e := NewEnvelopeBuilder().
		WithProducerID("sensor-1").
		WithField("temperature", 20.0).
		Build()

	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "sensor-1", e.ProducerID)
}
