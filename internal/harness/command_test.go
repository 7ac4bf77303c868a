package harness

import (
	"context"
	"testing"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/stretchr/testify/require"
)

func TestCommandRuntime_SynthesizesFromExitCode(t *testing.T) {
	rt := NewCommandRuntime(nil)
	req := dispatch.HarnessRunRequest{
		DispatchRequest: dispatch.DispatchRequest{RunID: "r1", TaskID: "t1", Command: "echo hello"},
	}
	result, err := rt.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.False(t, result.Structured)
	require.Equal(t, 0, result.ExitCode)
	require.Equal(t, dispatch.StatusSucceeded, result.Envelope.Status)
}

func TestCommandRuntime_NonZeroExit(t *testing.T) {
	rt := NewCommandRuntime(nil)
	req := dispatch.HarnessRunRequest{
		DispatchRequest: dispatch.DispatchRequest{RunID: "r1", TaskID: "t1", Command: "exit 3"},
	}
	result, err := rt.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.Equal(t, 3, result.ExitCode)
	require.Equal(t, dispatch.StatusFailed, result.Envelope.Status)
}

func TestCommandRuntime_AdoptsStructuredOutput(t *testing.T) {
	rt := NewCommandRuntime(nil)
	req := dispatch.HarnessRunRequest{
		DispatchRequest: dispatch.DispatchRequest{
			RunID: "r1", TaskID: "t1",
			Command: `echo '{"status":"succeeded","summary":"did the thing"}'`,
		},
	}
	result, err := rt.Run(context.Background(), req, nil)
	require.NoError(t, err)
	require.True(t, result.Structured)
	require.Equal(t, "did the thing", result.Envelope.Summary)
	require.Equal(t, "r1", result.Envelope.RunID)
}

func TestAdoptStructuredOutput_RejectsUnknownStatus(t *testing.T) {
	_, ok := adoptStructuredOutput(`{"status":"unknown","summary":"x"}`)
	require.False(t, ok)
}

func TestAdoptStructuredOutput_RejectsNonJSON(t *testing.T) {
	_, ok := adoptStructuredOutput("plain text output\n")
	require.False(t, ok)
}
