package runtimeevent

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSink_MonotonicSequence(t *testing.T) {
	var chunks [][]byte
	sink := NewSink(func(ctx context.Context, chunk []byte) {
		chunks = append(chunks, chunk)
	}, nil)

	for i := 0; i < 3; i++ {
		seq := sink.Publish(context.Background(), CanonicalEvent{Type: TypeAssistantDelta, Content: "hi"})
		require.Equal(t, int64(i+1), seq)
	}
	require.Len(t, chunks, 3)

	var prev int64
	for _, c := range chunks {
		var env WireEnvelope
		require.NoError(t, json.Unmarshal(c, &env))
		require.Equal(t, WireMarker, env.Marker)
		require.Greater(t, env.Sequence, prev)
		prev = env.Sequence
	}
}

func TestSink_DropsEmptyContent(t *testing.T) {
	called := false
	sink := NewSink(func(ctx context.Context, chunk []byte) { called = true }, nil)

	seq := sink.Publish(context.Background(), CanonicalEvent{Type: TypeAssistantDelta, Content: "   "})
	require.Equal(t, int64(0), seq)
	require.False(t, called)
}

func TestNullSink_NoOp(t *testing.T) {
	sink := NullSink()
	seq := sink.Publish(context.Background(), CanonicalEvent{Type: TypeAssistantDelta, Content: "hi"})
	require.Equal(t, int64(0), seq)
}

func TestSink_Redacts(t *testing.T) {
	var got string
	sink := NewSink(func(ctx context.Context, chunk []byte) {
		var env WireEnvelope
		_ = json.Unmarshal(chunk, &env)
		got = env.Content
	}, redactingStub{})

	sink.Publish(context.Background(), CanonicalEvent{Type: TypeAssistantDelta, Content: "secret-abc"})
	require.Equal(t, "***", got)
}

// redactingStub satisfies the Redactor-shaped dependency used by tests
// without pulling in the redact package's env-scanning behavior.
type redactingStub struct{}

func (redactingStub) Redact(s string) string { return "***" }
