package runtimeevent

import (
	"encoding/json"
)

// DefaultSchemaVersion is used unless an embedded event carries its own
// schemaVersion; a request's ProtocolVersion is not consulted.
const DefaultSchemaVersion = "harness-structured-event-v2"

// StructuredProjection is the Job Processor's view of a wire envelope: a
// normalized category, a JSON payload whose shape depends on category, and
// a resolved schema version.
type StructuredProjection struct {
	Category      string
	PayloadJSON   json.RawMessage
	SchemaVersion string
}

// categoryAliases maps raw/source category spellings to the canonical
// wire type names used in CanonicalEvent.
var categoryAliases = map[string]CanonicalEventType{
	"reasoning_delta":  TypeReasoningDelta,
	"assistant_delta":  TypeAssistantDelta,
	"command_output":   TypeCommandDelta,
	"diff_update":      TypeDiffUpdated,
	"session.diff":     TypeDiffUpdated,
	"diagnostic":       TypeError,
	"completion":       TypeRunCompleted,
	"log":              TypeRunLifecycle,
	"session.status":   TypeRunLifecycle,
	"session.idle":     TypeRunLifecycle,
	"session.usage":    TypeUsageUpdated,
	"usage.updated":    TypeUsageUpdated,
}

// ParseWireEnvelope attempts to parse chunk as a WireEnvelope carrying the
// expected marker and a non-zero sequence. It returns ok=false for any
// chunk that isn't recognizably a wire envelope, so the caller can fall
// back to treating it as an opaque log_chunk.
func ParseWireEnvelope(chunk []byte) (WireEnvelope, bool) {
	var env WireEnvelope
	if err := json.Unmarshal(chunk, &env); err != nil {
		return WireEnvelope{}, false
	}
	if env.Marker != WireMarker || env.Sequence <= 0 {
		return WireEnvelope{}, false
	}
	return env, true
}

// Project derives a StructuredProjection from a parsed wire envelope,
// normalizing its type to the canonical category set and building a
// category-shaped payload. If the envelope's content is itself JSON with a
// "type" field, it is lifted in place as the embedded structured event,
// and its own "schemaVersion" field (if present) overrides the default.
func Project(env WireEnvelope) StructuredProjection {
	category := string(normalizeCategory(env.Type))
	schemaVersion := DefaultSchemaVersion

	if embedded, ok := tryEmbedded(env.Content); ok {
		if t, ok := embedded["type"].(string); ok && t != "" {
			category = string(normalizeCategory(CanonicalEventType(t)))
		}
		if sv, ok := embedded["schemaVersion"].(string); ok && sv != "" {
			schemaVersion = sv
		}
		payload, _ := json.Marshal(embedded)
		return StructuredProjection{Category: category, PayloadJSON: payload, SchemaVersion: schemaVersion}
	}

	payload := payloadFor(category, env)
	return StructuredProjection{Category: category, PayloadJSON: payload, SchemaVersion: schemaVersion}
}

func normalizeCategory(t CanonicalEventType) CanonicalEventType {
	if canon, ok := categoryAliases[string(t)]; ok {
		return canon
	}
	switch {
	case len(t) >= len("message.part.") && t[:len("message.part.")] == "message.part.":
		return TypeAssistantDelta
	}
	return t
}

func tryEmbedded(content string) (map[string]any, bool) {
	trimmed := []byte(content)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, false
	}
	if _, ok := m["type"]; !ok {
		return nil, false
	}
	return m, true
}

func payloadFor(category string, env WireEnvelope) json.RawMessage {
	var shaped map[string]any
	switch CanonicalEventType(category) {
	case TypeReasoningDelta:
		shaped = map[string]any{"thinking": env.Content}
	case TypeAssistantDelta:
		shaped = map[string]any{"text": env.Content}
	case TypeCommandDelta:
		shaped = map[string]any{"output": env.Content}
	case TypeDiffUpdated:
		shaped = map[string]any{"diffPatch": env.Content}
	case TypeRunCompleted, TypeRunLifecycle:
		shaped = map[string]any{"status": env.Content}
	case TypeError:
		shaped = map[string]any{"message": env.Content}
	default:
		shaped = map[string]any{"message": env.Content}
	}
	if len(env.Metadata) > 0 {
		shaped["metadata"] = env.Metadata
	}
	out, _ := json.Marshal(shaped)
	return out
}
