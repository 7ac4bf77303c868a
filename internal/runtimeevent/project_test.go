package runtimeevent

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseWireEnvelope(t *testing.T) {
	valid := []byte(`{"marker":"agentsdashboard.harness-runtime-event.v1","sequence":1,"type":"assistant.delta","content":"hi"}`)
	env, ok := ParseWireEnvelope(valid)
	require.True(t, ok)
	require.Equal(t, int64(1), env.Sequence)

	t.Run("wrong marker", func(t *testing.T) {
		_, ok := ParseWireEnvelope([]byte(`{"marker":"other","sequence":1,"type":"x","content":"y"}`))
		require.False(t, ok)
	})

	t.Run("zero sequence", func(t *testing.T) {
		_, ok := ParseWireEnvelope([]byte(`{"marker":"agentsdashboard.harness-runtime-event.v1","sequence":0,"type":"x","content":"y"}`))
		require.False(t, ok)
	})

	t.Run("not json", func(t *testing.T) {
		_, ok := ParseWireEnvelope([]byte("plain text line"))
		require.False(t, ok)
	})
}

func TestProject_Aliases(t *testing.T) {
	env := WireEnvelope{Marker: WireMarker, Sequence: 1, Type: "reasoning_delta", Content: "thinking..."}
	proj := Project(env)
	require.Equal(t, string(TypeReasoningDelta), proj.Category)
	require.Contains(t, string(proj.PayloadJSON), "thinking...")
	require.Equal(t, DefaultSchemaVersion, proj.SchemaVersion)
}

func TestProject_EmbeddedStructuredEvent(t *testing.T) {
	env := WireEnvelope{
		Marker:   WireMarker,
		Sequence: 1,
		Type:     TypeRunLifecycle,
		Content:  `{"type":"usage.updated","schemaVersion":"custom-v3","tokens":42}`,
	}
	proj := Project(env)
	require.Equal(t, string(TypeUsageUpdated), proj.Category)
	require.Equal(t, "custom-v3", proj.SchemaVersion)
	require.Contains(t, string(proj.PayloadJSON), "42")
}

func TestProject_MessagePartAlias(t *testing.T) {
	env := WireEnvelope{Marker: WireMarker, Sequence: 1, Type: "message.part.text", Content: "hi"}
	proj := Project(env)
	require.Equal(t, string(TypeAssistantDelta), proj.Category)
}
