// Package executor implements the Harness Executor: the per-job pipeline
// that serializes git access, prepares a workspace, selects and runs a
// harness runtime, and normalizes the result envelope.
package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/agentsdashboard/runtime-gateway/internal/gitworkspace"
	"github.com/agentsdashboard/runtime-gateway/internal/harness"
	"github.com/agentsdashboard/runtime-gateway/internal/redact"
	"github.com/agentsdashboard/runtime-gateway/internal/runtimeevent"
)

const (
	defaultCPULimit    = 1.5
	defaultMemoryLimit = "2g"
	defaultTimeout     = 30 * time.Minute
)

// Executor runs jobs end to end. The gateway shares one Executor across
// all admitted jobs and calls Run concurrently; Executor itself holds no
// per-job state between calls.
type Executor struct {
	workspaces *gitworkspace.Manager
	registry   *harness.Registry
	redactor   *redact.Redactor

	artifactsRoot string
}

// New builds an Executor. workspaces and registry must be non-nil;
// artifactsRoot is the host directory under which per-run artifact
// subdirectories are created.
func New(workspaces *gitworkspace.Manager, registry *harness.Registry, redactor *redact.Redactor, artifactsRoot string) *Executor {
	return &Executor{workspaces: workspaces, registry: registry, redactor: redactor, artifactsRoot: artifactsRoot}
}

// ChunkCallback receives the serialized wire envelope for one emitted
// event, forwarded by the caller to its event-bus publication.
type ChunkCallback func(ctx context.Context, chunk []byte)

// Run executes req end to end and returns the normalized envelope. Run
// never panics on harness or git failure; those become failed envelopes.
func (e *Executor) Run(ctx context.Context, req dispatch.DispatchRequest, onChunk ChunkCallback) (envelope dispatch.ResultEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			// A panic here would otherwise take down the worker goroutine;
			// the executor's job is to always return an envelope.
			envelope = e.stamp(req, dispatch.FailedEnvelope(req.RunID, req.TaskID, "Harness execution crashed", fmt.Errorf("%v", r)), "", "")
		}
	}()

	var unlock func()
	gitPrepared := req.CloneURL != ""
	if gitPrepared {
		unlock = e.workspaces.Lock(req.RepositoryID, req.TaskID)
		defer unlock()
	}

	var wctx dispatch.WorkspaceContext
	if gitPrepared {
		var err error
		wctx, err = e.workspaces.Prepare(ctx, req)
		if err != nil {
			return e.stamp(req, dispatch.FailedEnvelope(req.RunID, req.TaskID, "Workspace preparation failed", err), "", "")
		}
	}

	runReq := e.buildRunRequest(req, wctx)

	sink := runtimeevent.NewSink(runtimeevent.ChunkCallback(onChunk), e.redactor)
	if onChunk == nil {
		sink = runtimeevent.NullSink()
	}

	set := e.registry.Build(req)

	envelope, runtimeName := e.execute(ctx, runReq, set, sink)
	envelope = e.stamp(req, envelope, set.RuntimeMode, runtimeName)

	envelope.Validate()

	if gitPrepared {
		if envelope.Status == dispatch.StatusSucceeded {
			if err := e.workspaces.Finalize(ctx, wctx, req, &envelope); err != nil {
				envelope.Status = dispatch.StatusFailed
				envelope.Summary = "Git commit/push failed"
				envelope.Error = err.Error()
				envelope.EnsureMetadata()["gitWorkflow"] = "failed"
			}
		} else {
			envelope.EnsureMetadata()["gitWorkflow"] = "skipped/non-success-run"
		}
	}

	adapter := e.registry.AdapterFor(req.Harness)
	if envelope.Status == dispatch.StatusFailed {
		classification := adapter.ClassifyFailure(envelope)
		meta := envelope.EnsureMetadata()
		meta["failureCategory"] = classification.Category
		if classification.Detail != "" {
			meta["failureDetail"] = classification.Detail
		}
	}

	artifactMap := adapter.MapArtifacts(envelope)
	if wctx.WorkspacePath != "" {
		artifacts, err := e.extractArtifacts(req, wctx.WorkspacePath, artifactMap)
		if err == nil {
			envelope.Artifacts = artifacts
		}
	}

	return envelope
}

// buildRunRequest derives the runtime-facing view from req, resolving env,
// timeout, resource defaults, and mode.
func (e *Executor) buildRunRequest(req dispatch.DispatchRequest, wctx dispatch.WorkspaceContext) dispatch.HarnessRunRequest {
	timeout := defaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	cpu := defaultCPULimit
	if req.Sandbox.CPULimit > 0 {
		cpu = req.Sandbox.CPULimit
	}
	mem := defaultMemoryLimit
	if req.Sandbox.MemoryBytes > 0 {
		mem = strconv.FormatInt(req.Sandbox.MemoryBytes, 10)
	}

	mode := harness.ResolveMode(req)

	artifactsHostPath := ""
	if e.artifactsRoot != "" {
		artifactsHostPath = filepath.Join(e.artifactsRoot, req.RunID)
	}

	return dispatch.HarnessRunRequest{
		DispatchRequest:   req,
		WorkspacePath:     wctx.WorkspacePath,
		Mode:              mode,
		Timeout:           timeout,
		ArtifactsHostPath: artifactsHostPath,
		CPULimit:          cpu,
		MemoryLimit:       mem,
	}
}

// execute runs the primary runtime, falling back to the generic command
// runtime on any non-cancellation failure.
func (e *Executor) execute(ctx context.Context, req dispatch.HarnessRunRequest, set harness.Set, sink *runtimeevent.Sink) (dispatch.ResultEnvelope, string) {
	result, err := set.Primary.Run(ctx, req, sink)
	if err == nil {
		return result.Envelope, runtimeName(set.Primary)
	}
	if ctx.Err() != nil {
		return dispatch.FailedEnvelope(req.RunID, req.TaskID, "Run cancelled or timed out", ctx.Err()), runtimeName(set.Primary)
	}
	if set.Fallback == nil {
		return dispatch.FailedEnvelope(req.RunID, req.TaskID, "Harness execution crashed", err), runtimeName(set.Primary)
	}

	sink.Publish(ctx, runtimeevent.CanonicalEvent{
		Type:    runtimeevent.TypeDiagnostic,
		Content: fmt.Sprintf("structured runtime failed (%s); falling back to generic command runtime", err),
	})

	fallbackResult, fallbackErr := set.Fallback.Run(ctx, req, sink)
	if fallbackErr != nil {
		return dispatch.FailedEnvelope(req.RunID, req.TaskID, "Harness execution crashed", fallbackErr), "command"
	}

	envelope := fallbackResult.Envelope
	meta := envelope.EnsureMetadata()
	meta["structuredRuntimeFallback"] = "true"
	meta["structuredRuntimeFailure"] = err.Error()
	return envelope, "command"
}

func runtimeName(r harness.Runtime) string {
	switch r.(type) {
	case *harness.ClaudeRuntime:
		return "claude-stream"
	case *harness.CodexRuntime:
		return "codex-app-server"
	default:
		return "command"
	}
}

// stamp applies the envelope post-processing common to every run:
// identifiers and runtime metadata.
func (e *Executor) stamp(req dispatch.DispatchRequest, envelope dispatch.ResultEnvelope, runtimeMode, runtimeName string) dispatch.ResultEnvelope {
	envelope.RunID = req.RunID
	envelope.TaskID = req.TaskID
	meta := envelope.EnsureMetadata()
	if runtimeMode != "" {
		meta["runtimeMode"] = runtimeMode
	}
	if runtimeName != "" {
		meta["runtimeName"] = runtimeName
	}
	return envelope
}

// extractArtifacts walks workspacePath and lists the workspace-relative
// paths of files (respecting artifactMap.Include/Exclude prefixes, if any),
// bounded by req.Artifact (default 50 files / 100 MiB). Files are listed,
// not copied: nothing is written to the per-run artifact directory.
func (e *Executor) extractArtifacts(req dispatch.DispatchRequest, workspacePath string, artifactMap harness.ArtifactMap) ([]string, error) {
	policy := req.Artifact
	if policy.MaxCount == 0 && policy.MaxBytes == 0 {
		policy = dispatch.DefaultArtifactPolicy()
	}

	var collected []string
	var totalBytes int64

	err := filepath.Walk(workspacePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if len(collected) >= policy.MaxCount || totalBytes >= policy.MaxBytes {
			return filepath.SkipAll
		}

		rel, err := filepath.Rel(workspacePath, path)
		if err != nil {
			return nil
		}
		if !artifactAllowed(rel, artifactMap) {
			return nil
		}
		if totalBytes+info.Size() > policy.MaxBytes {
			return nil
		}

		collected = append(collected, rel)
		totalBytes += info.Size()
		return nil
	})
	return collected, err
}

func artifactAllowed(rel string, m harness.ArtifactMap) bool {
	for _, excl := range m.Exclude {
		if strings.HasPrefix(rel, excl) {
			return false
		}
	}
	if len(m.Include) == 0 {
		return true
	}
	for _, inc := range m.Include {
		if strings.HasPrefix(rel, inc) {
			return true
		}
	}
	return false
}
