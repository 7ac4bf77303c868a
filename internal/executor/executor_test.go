package executor

import (
	"context"
	"testing"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/agentsdashboard/runtime-gateway/internal/harness"
	"github.com/stretchr/testify/require"
)

func TestExecutor_Run_GenericCommandNoGit(t *testing.T) {
	registry := harness.NewRegistry("", "", nil)
	exec := New(nil, registry, nil, t.TempDir())

	req := dispatch.DispatchRequest{
		RunID:   "r1",
		TaskID:  "t1",
		Harness: "generic",
		Command: "echo hello",
	}

	var chunks int
	envelope := exec.Run(context.Background(), req, func(ctx context.Context, chunk []byte) {
		chunks++
	})

	require.Equal(t, dispatch.StatusSucceeded, envelope.Status)
	require.Equal(t, "r1", envelope.RunID)
	require.Equal(t, "command", envelope.Metadata["runtimeName"])
}

func TestExecutor_Run_FailingCommandClassifiesFailure(t *testing.T) {
	registry := harness.NewRegistry("", "", nil)
	exec := New(nil, registry, nil, "")

	req := dispatch.DispatchRequest{
		RunID:   "r2",
		TaskID:  "t2",
		Harness: "generic",
		Command: "exit 7",
	}

	envelope := exec.Run(context.Background(), req, nil)
	require.Equal(t, dispatch.StatusFailed, envelope.Status)
	require.Equal(t, "harness", envelope.Metadata["failureCategory"])
}

type panicAdapter struct{}

func (panicAdapter) ClassifyFailure(envelope dispatch.ResultEnvelope) harness.FailureClassification {
	panic("boom")
}

func (panicAdapter) MapArtifacts(dispatch.ResultEnvelope) harness.ArtifactMap {
	return harness.ArtifactMap{}
}

func TestExecutor_Run_RecoversFromPanicWithFailedEnvelope(t *testing.T) {
	registry := harness.NewRegistry("", "", nil)
	registry.RegisterAdapter("generic", panicAdapter{})
	exec := New(nil, registry, nil, "")

	req := dispatch.DispatchRequest{
		RunID:   "r3",
		TaskID:  "t3",
		Harness: "generic",
		Command: "exit 7",
	}

	envelope := exec.Run(context.Background(), req, nil)
	require.Equal(t, dispatch.StatusFailed, envelope.Status)
	require.Equal(t, "Harness execution crashed", envelope.Summary)
	require.Equal(t, "r3", envelope.RunID)
	require.NotEmpty(t, envelope.Error)
}

func TestArtifactAllowed_RespectsIncludeExclude(t *testing.T) {
	m := harness.ArtifactMap{Include: []string{"out/"}, Exclude: []string{"out/secrets/"}}
	require.True(t, artifactAllowed("out/result.json", m))
	require.False(t, artifactAllowed("out/secrets/key.pem", m))
	require.False(t, artifactAllowed("other/file.txt", m))
}
