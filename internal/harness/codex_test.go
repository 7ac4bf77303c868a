package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/stretchr/testify/require"
)

func TestBuildTurnInput_TextOnlyByDefault(t *testing.T) {
	req := dispatch.HarnessRunRequest{DispatchRequest: dispatch.DispatchRequest{
		Prompt:          "do the thing",
		MultimodalParts: []dispatch.MultimodalPart{{ImageRef: "artifact://img1"}},
	}}
	input := buildTurnInput(req, false)
	parts, ok := input.([]map[string]string)
	require.True(t, ok)
	require.Len(t, parts, 1)
	require.Equal(t, "text", parts[0]["type"])
}

func TestBuildTurnInput_MultimodalMixesTextAndImage(t *testing.T) {
	req := dispatch.HarnessRunRequest{DispatchRequest: dispatch.DispatchRequest{
		Prompt:          "do the thing",
		MultimodalParts: []dispatch.MultimodalPart{{ImageRef: "artifact://img1"}},
	}}
	input := buildTurnInput(req, true)
	parts := input.([]map[string]string)
	require.Len(t, parts, 2)
	require.Equal(t, "image", parts[1]["type"])
}

func TestResolveCompletion_Success(t *testing.T) {
	rt := NewCodexRuntime("codex", nil)
	params, _ := json.Marshal(map[string]string{"status": "completed"})
	envelope, code := rt.resolveCompletion(dispatch.HarnessRunRequest{DispatchRequest: dispatch.DispatchRequest{RunID: "r1", TaskID: "t1"}}, jsonrpcFrame{Params: params}, &bytes.Buffer{})
	require.Equal(t, 0, code)
	require.Equal(t, dispatch.StatusSucceeded, envelope.Status)
}

func TestResolveCompletion_FailureUsesStderrTail(t *testing.T) {
	rt := NewCodexRuntime("codex", nil)
	params, _ := json.Marshal(map[string]string{"status": "failed"})
	stderr := bytes.NewBufferString("boom")
	envelope, code := rt.resolveCompletion(dispatch.HarnessRunRequest{DispatchRequest: dispatch.DispatchRequest{RunID: "r1", TaskID: "t1"}}, jsonrpcFrame{Params: params}, stderr)
	require.Equal(t, 1, code)
	require.Equal(t, dispatch.StatusFailed, envelope.Status)
	require.Equal(t, "boom", envelope.Error)
}

func TestDeltaText_PrefersDeltaField(t *testing.T) {
	raw, _ := json.Marshal(map[string]string{"delta": "chunk", "text": "whole"})
	require.Equal(t, "chunk", deltaText(raw))
}

func TestPendingRequests_ResolveMatchesByID(t *testing.T) {
	p := newPendingRequests()
	ch := p.register(5)
	id := int64(5)
	ok := p.resolve(jsonrpcFrame{ID: &id})
	require.True(t, ok)
	frame := <-ch
	require.Equal(t, int64(5), *frame.ID)
}
