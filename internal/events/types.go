package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event represents a single occurrence in the gateway's operational lifecycle.
// This is distinct from the per-run CanonicalEvent stream in runtimeevent:
// Event tracks job/workspace/container lifecycle, CanonicalEvent tracks
// harness output.
type Event struct {
	// Time is when the event occurred (set by the bus on Emit if zero).
	Time time.Time `json:"time"`

	// Type identifies what happened.
	Type EventType `json:"type"`

	// RunID is the run this event relates to (empty for gateway-wide events).
	RunID string `json:"run_id,omitempty"`

	// Payload contains event-specific data (type varies by event).
	Payload any `json:"payload,omitempty"`

	// Error contains an error message if this is a failure event.
	Error string `json:"error,omitempty"`

	// Sequence is the monotonic per-run chunk sequence number assigned by
	// runtimeevent.Sink, set on LogChunk events derived from a harness's
	// structured output stream.
	Sequence int64 `json:"sequence,omitempty"`

	// Category is the normalized canonical event category (e.g.
	// "assistant.delta"), set on LogChunk events that parsed as a
	// structured wire envelope. Empty for opaque chunks.
	Category string `json:"category,omitempty"`

	// PayloadJSON is the category-shaped JSON payload projected from a
	// structured wire envelope (runtimeevent.StructuredProjection).
	PayloadJSON json.RawMessage `json:"payload_json,omitempty"`

	// SchemaVersion identifies the shape of PayloadJSON, set alongside it.
	SchemaVersion string `json:"schema_version,omitempty"`
}

// EventType is a string constant identifying the event category.
type EventType string

// Run lifecycle events.
const (
	RunQueued    EventType = "run.queued"
	RunRejected  EventType = "run.rejected"
	RunAdmitted  EventType = "run.admitted"
	RunStarted   EventType = "run.started"
	RunCompleted EventType = "run.completed"
	RunFailed    EventType = "run.failed"
	RunCancelled EventType = "run.cancelled"
)

// Workspace lifecycle events.
const (
	WorkspacePrepareStarted  EventType = "workspace.prepare.started"
	WorkspacePrepared        EventType = "workspace.prepared"
	WorkspacePrepareFailed   EventType = "workspace.prepare.failed"
	WorkspaceFinalizeStarted EventType = "workspace.finalize.started"
	WorkspaceFinalized       EventType = "workspace.finalized"
	WorkspaceFinalizeFailed  EventType = "workspace.finalize.failed"
)

// Container lifecycle events.
const (
	ContainerCreated EventType = "container.created"
	ContainerStarted EventType = "container.started"
	ContainerStopped EventType = "container.stopped"
	ContainerRemoved EventType = "container.removed"
)

// Reconciler / health events.
const (
	OrphanDetected EventType = "reconciler.orphan.detected"
	OrphanReaped   EventType = "reconciler.orphan.reaped"
	HeartbeatSent  EventType = "heartbeat.sent"
)

// Harness output streaming events. LogChunk carries one emitted chunk of
// harness output, structured (Category/PayloadJSON/SchemaVersion set) when
// it parsed as a wire envelope, opaque (Payload holds the raw bytes) when
// it didn't.
const (
	LogChunk EventType = "log_chunk"
)

// NewEvent creates an event with the given type and run id.
func NewEvent(eventType EventType, runID string) Event {
	return Event{Type: eventType, RunID: runID}
}

// WithPayload returns a copy of the event with the payload set.
func (e Event) WithPayload(payload any) Event {
	e.Payload = payload
	return e
}

// WithError returns a copy of the event with the error message set.
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithProjection returns a copy of the event with the structured-chunk
// fields set, as produced by runtimeevent.Project for a parsed wire
// envelope.
func (e Event) WithProjection(sequence int64, category string, payloadJSON json.RawMessage, schemaVersion string) Event {
	e.Sequence = sequence
	e.Category = category
	e.PayloadJSON = payloadJSON
	e.SchemaVersion = schemaVersion
	return e
}

// IsFailure returns true if this is a failure event type.
func (e Event) IsFailure() bool {
	return strings.HasSuffix(string(e.Type), ".failed") || strings.HasSuffix(string(e.Type), ".rejected")
}

// String returns a human-readable representation of the event.
func (e Event) String() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Type))
	if e.RunID != "" {
		parts = append(parts, e.RunID)
	}
	if e.Error != "" {
		parts = append(parts, fmt.Sprintf("error=%q", e.Error))
	}
	return strings.Join(parts, " ")
}
