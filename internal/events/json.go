package events

import (
	"encoding/json"
	"time"
)

// JSONEvent is the wire format for serialized operational events, e.g. when
// a reconciler report or heartbeat is logged to a file for offline
// inspection, or when a LogChunk event is relayed to the control plane as
// a JobEvent.
type JSONEvent struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Error     string         `json:"error,omitempty"`

	Sequence      int64           `json:"sequence,omitempty"`
	Category      string          `json:"category,omitempty"`
	PayloadJSON   json.RawMessage `json:"payload_json,omitempty"`
	SchemaVersion string          `json:"schema_version,omitempty"`
}

// ToJSONEvent converts an internal Event to the wire format JSONEvent.
func ToJSONEvent(e Event) JSONEvent {
	je := JSONEvent{
		Type:          string(e.Type),
		Timestamp:     e.Time,
		RunID:         e.RunID,
		Error:         e.Error,
		Sequence:      e.Sequence,
		Category:      e.Category,
		PayloadJSON:   e.PayloadJSON,
		SchemaVersion: e.SchemaVersion,
	}
	if e.Payload != nil {
		switch p := e.Payload.(type) {
		case map[string]any:
			je.Payload = p
		default:
			je.Payload = map[string]any{"value": e.Payload}
		}
	}
	return je
}

// ToEvent converts a wire format JSONEvent back to an internal Event.
func (je JSONEvent) ToEvent() Event {
	var payload any
	if je.Payload != nil {
		payload = je.Payload
	}
	return Event{
		Type:          EventType(je.Type),
		Time:          je.Timestamp,
		RunID:         je.RunID,
		Payload:       payload,
		Error:         je.Error,
		Sequence:      je.Sequence,
		Category:      je.Category,
		PayloadJSON:   je.PayloadJSON,
		SchemaVersion: je.SchemaVersion,
	}
}
