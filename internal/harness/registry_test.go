package harness

import (
	"testing"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/stretchr/testify/require"
)

func TestResolveMode_Ladder(t *testing.T) {
	req := dispatch.DispatchRequest{Mode: dispatch.ModePlan}
	require.Equal(t, "plan", ResolveMode(req))

	req.Env = map[string]string{"HARNESS_EXECUTION_MODE": "exec-mode"}
	require.Equal(t, "exec-mode", ResolveMode(req))

	req.Env["HARNESS_MODE"] = "harness-mode"
	require.Equal(t, "harness-mode", ResolveMode(req))

	req.Env["CODEX_MODE"] = "codex-mode"
	require.Equal(t, "codex-mode", ResolveMode(req))

	req.Env["CODEX_TRANSPORT"] = "transport-mode"
	require.Equal(t, "transport-mode", ResolveMode(req))

	req.Env["HARNESS_RUNTIME_MODE"] = "runtime-mode"
	require.Equal(t, "runtime-mode", ResolveMode(req))
}

func TestResolveMode_DefaultsToCommand(t *testing.T) {
	require.Equal(t, "command", ResolveMode(dispatch.DispatchRequest{}))
}

func TestRegistry_Build_SelectsByHarness(t *testing.T) {
	reg := NewRegistry("", "", nil)

	claudeSet := reg.Build(dispatch.DispatchRequest{Harness: "claude"})
	require.IsType(t, &ClaudeRuntime{}, claudeSet.Primary)
	require.IsType(t, &CommandRuntime{}, claudeSet.Fallback)

	codexSet := reg.Build(dispatch.DispatchRequest{Harness: "codex"})
	require.IsType(t, &CodexRuntime{}, codexSet.Primary)

	genericSet := reg.Build(dispatch.DispatchRequest{Harness: "generic"})
	require.IsType(t, &CommandRuntime{}, genericSet.Primary)
	require.Nil(t, genericSet.Fallback)
}

func TestDefaultAdapter_ClassifyFailure(t *testing.T) {
	a := defaultAdapter{}
	c := a.ClassifyFailure(dispatch.ResultEnvelope{Status: dispatch.StatusFailed, Error: "git push rejected"})
	require.Equal(t, "git", c.Category)

	c = a.ClassifyFailure(dispatch.ResultEnvelope{Status: dispatch.StatusFailed, Error: "context deadline exceeded"})
	require.Equal(t, "timeout", c.Category)

	c = a.ClassifyFailure(dispatch.ResultEnvelope{Status: dispatch.StatusSucceeded})
	require.Equal(t, "none", c.Category)
}
