package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/agentsdashboard/runtime-gateway/internal/redact"
	"github.com/agentsdashboard/runtime-gateway/internal/runtimeevent"
)

const maxCapturedOutput = 5000

// CommandRuntime is the generic fallback runtime: it runs the request's
// shell command verbatim and either adopts a structured envelope the
// command printed on stdout, or synthesizes one from the exit code.
type CommandRuntime struct {
	redactor *redact.Redactor
}

// NewCommandRuntime builds a CommandRuntime. redactor may be nil, in which
// case output is passed through unredacted.
func NewCommandRuntime(redactor *redact.Redactor) *CommandRuntime {
	return &CommandRuntime{redactor: redactor}
}

func (r *CommandRuntime) redact(s string) string {
	if r.redactor == nil {
		return s
	}
	return r.redactor.Redact(s)
}

// Run executes `sh -lc <command>` in req.WorkspacePath (or the process cwd
// if empty), capturing stdout/stderr and building an envelope.
func (r *CommandRuntime) Run(ctx context.Context, req dispatch.HarnessRunRequest, sink *runtimeevent.Sink) (RuntimeResult, error) {
	runCtx, cancel := withTimeout(ctx, req)
	defer cancel()

	command := req.Command
	if command == "" {
		command = req.Prompt
	}

	env := envSlice(os.Environ(), req.Env)
	cmd := newCommand(runCtx, "sh", []string{"-lc", command}, req.WorkspacePath, env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	code := exitCode(runErr)

	outText := r.redact(stdout.String())
	errText := r.redact(stderr.String())

	if sink != nil {
		sink.Publish(ctx, runtimeevent.CanonicalEvent{
			Type:    runtimeevent.TypeCommandDelta,
			Content: outText,
		})
	}

	if envelope, ok := adoptStructuredOutput(outText); ok {
		envelope.RunID = req.RunID
		envelope.TaskID = req.TaskID
		return RuntimeResult{Structured: true, ExitCode: code, Envelope: envelope}, nil
	}

	envelope := dispatch.ResultEnvelope{RunID: req.RunID, TaskID: req.TaskID}
	meta := envelope.EnsureMetadata()
	meta["stdout"] = truncate(outText, maxCapturedOutput)
	meta["stderr"] = truncate(errText, maxCapturedOutput)

	if code == 0 {
		envelope.Status = dispatch.StatusSucceeded
		envelope.Summary = "Command exited 0"
	} else {
		envelope.Status = dispatch.StatusFailed
		envelope.Summary = fmt.Sprintf("Command exited %d", code)
		if errText != "" {
			envelope.Error = truncate(errText, maxCapturedOutput)
		}
	}

	return RuntimeResult{Structured: false, ExitCode: code, Envelope: envelope}, nil
}

// adoptStructuredOutput tries to parse text as a full ResultEnvelope JSON
// object with a meaningful (non-"unknown", non-empty) status.
func adoptStructuredOutput(text string) (dispatch.ResultEnvelope, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed[0] != '{' {
		return dispatch.ResultEnvelope{}, false
	}
	var envelope dispatch.ResultEnvelope
	if err := json.Unmarshal([]byte(trimmed), &envelope); err != nil {
		return dispatch.ResultEnvelope{}, false
	}
	if envelope.Status == "" || envelope.Status == "unknown" {
		return dispatch.ResultEnvelope{}, false
	}
	return envelope, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
