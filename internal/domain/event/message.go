package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// EncodingBase64 marks a payload that was not JSON and travels as a base64 string.
const EncodingBase64 = "base64"

// Message is the envelope handed to subscribers that cannot read the event
// type and id from HTTP headers (the Kafka sink and its consumers).
// A JSON payload is embedded as is; anything else is base64-encoded and
// flagged in PayloadEncoding.
type Message struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	AggregateID     string          `json:"aggregate_id"`
	Producer        string          `json:"producer"`
	OccurredAt      time.Time       `json:"occurred_at"`
	Payload         json.RawMessage `json:"payload"`
	PayloadEncoding string          `json:"payload_encoding,omitempty"`
}

// SetPayload stores raw so that any byte sequence survives the envelope.
func (m *Message) SetPayload(raw []byte) {
	if json.Valid(raw) {
		m.Payload = json.RawMessage(raw)
		m.PayloadEncoding = ""
		return
	}
	// []byte marshals to a base64 JSON string and cannot fail.
	encoded, _ := json.Marshal(raw)
	m.Payload = encoded
	m.PayloadEncoding = EncodingBase64
}

// RawPayload returns the bytes given to SetPayload.
func (m Message) RawPayload() ([]byte, error) {
	switch m.PayloadEncoding {
	case "":
		return m.Payload, nil
	case EncodingBase64:
		var raw []byte
		if err := json.Unmarshal(m.Payload, &raw); err != nil {
			return nil, fmt.Errorf("decode base64 payload: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown payload encoding %q", m.PayloadEncoding)
	}
}
