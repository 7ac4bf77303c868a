// Package runtimeevent implements the gateway's canonical event model: the
// vendor-agnostic CanonicalEvent harness runtimes emit, the WireEnvelope a
// Sink frames them into with a strictly monotonic per-run sequence, and the
// StructuredProjection the Job Processor derives from a wire envelope for
// event-bus publication.
package runtimeevent

import "strings"

// CanonicalEventType is a vendor-agnostic event category produced by a
// harness runtime.
type CanonicalEventType string

const (
	TypeReasoningDelta CanonicalEventType = "reasoning.delta"
	TypeAssistantDelta CanonicalEventType = "assistant.delta"
	TypeCommandDelta   CanonicalEventType = "command.delta"
	TypeDiffUpdated    CanonicalEventType = "diff.updated"
	TypeRunLifecycle   CanonicalEventType = "run.lifecycle"
	TypeRunCompleted   CanonicalEventType = "run.completed"
	TypeError          CanonicalEventType = "error"
	TypeUsageUpdated   CanonicalEventType = "usage.updated"

	// TypeLog and TypeDiagnostic are not in the core canonical set but are
	// emitted by runtimes for raw, unparsed lines and fallback-path
	// narration respectively; the wire marker and sequencing rules apply
	// identically.
	TypeLog        CanonicalEventType = "log"
	TypeDiagnostic CanonicalEventType = "diagnostic"
)

// CanonicalEvent is produced by a harness runtime and handed to a Sink.
type CanonicalEvent struct {
	Type     CanonicalEventType
	Content  string
	Metadata map[string]string
}

// IsEmpty reports whether the event's content is empty or pure whitespace.
// A Sink drops such events rather than assigning them a sequence.
func (e CanonicalEvent) IsEmpty() bool {
	return strings.TrimSpace(e.Content) == ""
}

// WireMarker identifies the wire protocol version.
const WireMarker = "agentsdashboard.harness-runtime-event.v1"

// WireEnvelope is a single live event framed with the protocol marker and a
// strictly monotonic per-run sequence number.
type WireEnvelope struct {
	Marker   string             `json:"marker"`
	Sequence int64              `json:"sequence"`
	Type     CanonicalEventType `json:"type"`
	Content  string             `json:"content"`
	Metadata map[string]string  `json:"metadata,omitempty"`
}
