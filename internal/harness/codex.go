package harness

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/agentsdashboard/runtime-gateway/internal/redact"
	"github.com/agentsdashboard/runtime-gateway/internal/runtimeevent"
)

// CodexRuntime is the structured runtime for the Codex CLI's app-server
// mode, speaking newline-delimited JSON-RPC over stdin/stdout.
type CodexRuntime struct {
	command  string
	redactor *redact.Redactor
}

// NewCodexRuntime builds a CodexRuntime invoking the given binary (default
// "codex" if empty).
func NewCodexRuntime(command string, redactor *redact.Redactor) *CodexRuntime {
	if command == "" {
		command = "codex"
	}
	return &CodexRuntime{command: command, redactor: redactor}
}

func (r *CodexRuntime) redact(s string) string {
	if r.redactor == nil {
		return s
	}
	return r.redactor.Redact(s)
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcFrame struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// pendingRequests tracks in-flight JSON-RPC calls by id, resolved as
// responses with a matching id arrive on stdout.
type pendingRequests struct {
	mu      sync.Mutex
	waiters map[int64]chan jsonrpcFrame
}

func newPendingRequests() *pendingRequests {
	return &pendingRequests{waiters: make(map[int64]chan jsonrpcFrame)}
}

func (p *pendingRequests) register(id int64) chan jsonrpcFrame {
	ch := make(chan jsonrpcFrame, 1)
	p.mu.Lock()
	p.waiters[id] = ch
	p.mu.Unlock()
	return ch
}

func (p *pendingRequests) resolve(frame jsonrpcFrame) bool {
	if frame.ID == nil {
		return false
	}
	p.mu.Lock()
	ch, ok := p.waiters[*frame.ID]
	if ok {
		delete(p.waiters, *frame.ID)
	}
	p.mu.Unlock()
	if ok {
		ch <- frame
	}
	return ok
}

type codexSession struct {
	ctx      context.Context
	stdin    io.WriteCloser
	pending  *pendingRequests
	nextID   int64
	redactor func(string) string
}

func (s *codexSession) call(method string, params any) (jsonrpcFrame, error) {
	id := atomic.AddInt64(&s.nextID, 1)
	waiter := s.pending.register(id)

	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	payload, err := json.Marshal(req)
	if err != nil {
		return jsonrpcFrame{}, err
	}
	if _, err := s.stdin.Write(append(payload, '\n')); err != nil {
		return jsonrpcFrame{}, fmt.Errorf("codex: write %s: %w", method, err)
	}

	select {
	case frame := <-waiter:
		return frame, nil
	case <-s.ctx.Done():
		return jsonrpcFrame{}, s.ctx.Err()
	}
}

// Run drives the codex app-server lifecycle (initialize, thread/start,
// turn/start) and parses notifications into canonical events until a
// turn/completed frame, or premature process exit, resolves the run.
func (r *CodexRuntime) Run(ctx context.Context, req dispatch.HarnessRunRequest, sink *runtimeevent.Sink) (RuntimeResult, error) {
	runCtx, cancel := withTimeout(ctx, req)
	defer cancel()

	env := envSlice(os.Environ(), req.Env)
	cmd := newCommand(runCtx, r.command, []string{"app-server", "--listen", "stdio://"}, req.WorkspacePath, env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return RuntimeResult{}, fmt.Errorf("codex: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return RuntimeResult{}, fmt.Errorf("codex: stdout pipe: %w", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return RuntimeResult{}, fmt.Errorf("codex: start: %w", err)
	}

	pending := newPendingRequests()
	session := &codexSession{ctx: runCtx, stdin: stdin, pending: pending, redactor: r.redact}

	completion := make(chan jsonrpcFrame, 1)
	processExited := make(chan struct{})

	go r.readLoop(ctx, stdout, sink, pending, completion)
	go func() {
		_ = cmd.Wait()
		close(processExited)
	}()

	envelope, exitCodeVal := r.drive(runCtx, req, session, completion, processExited, &stderrBuf)
	return RuntimeResult{Structured: true, ExitCode: exitCodeVal, Envelope: envelope}, nil
}

func (r *CodexRuntime) drive(ctx context.Context, req dispatch.HarnessRunRequest, session *codexSession, completion chan jsonrpcFrame, processExited chan struct{}, stderrBuf *bytes.Buffer) (dispatch.ResultEnvelope, int) {
	if _, err := session.call("initialize", map[string]any{
		"clientInfo":     map[string]string{"name": "agentsdashboard-runtime-gateway"},
		"experimentalApi": true,
	}); err != nil {
		return dispatch.FailedEnvelope(req.RunID, req.TaskID, "Codex app-server initialize failed", err), -1
	}

	approvalPolicy := req.Env["CODEX_APPROVAL_POLICY"]
	if approvalPolicy == "" {
		if req.Mode == string(dispatch.ModePlan) || req.Mode == string(dispatch.ModeReview) {
			approvalPolicy = "never"
		} else {
			approvalPolicy = "on-failure"
		}
	}
	sandbox := req.Env["CODEX_SANDBOX"]
	if sandbox == "" {
		sandbox = "danger-full-access"
	}

	startParams := map[string]any{
		"cwd":            req.WorkspacePath,
		"approvalPolicy": approvalPolicy,
		"sandbox":        sandbox,
		"ephemeral":      true,
	}
	if model := req.Env["CODEX_MODEL"]; model != "" {
		startParams["model"] = model
	}

	startResp, err := session.call("thread/start", startParams)
	if err != nil {
		return dispatch.FailedEnvelope(req.RunID, req.TaskID, "Codex thread/start failed", err), -1
	}
	var started struct {
		ThreadID string `json:"threadId"`
	}
	_ = json.Unmarshal(startResp.Result, &started)

	input := buildTurnInput(req, false)
	turnParams := map[string]any{"threadId": started.ThreadID, "input": input, "cwd": req.WorkspacePath}
	_, err = session.call("turn/start", turnParams)
	if err != nil && req.Env["PREFER_NATIVE_MULTIMODAL"] != "" && len(req.MultimodalParts) > 0 {
		turnParams["input"] = buildTurnInput(req, true)
		_, err = session.call("turn/start", turnParams)
	}
	if err != nil {
		return dispatch.FailedEnvelope(req.RunID, req.TaskID, "Codex turn/start failed", err), -1
	}

	select {
	case frame := <-completion:
		return r.resolveCompletion(req, frame, stderrBuf)
	case <-processExited:
		return dispatch.FailedEnvelope(req.RunID, req.TaskID, "Codex app-server exited before turn completion",
			fmt.Errorf("codex app-server exited before turn completion")), 1
	case <-ctx.Done():
		return dispatch.FailedEnvelope(req.RunID, req.TaskID, "Run cancelled or timed out", ctx.Err()), -1
	}
}

// buildTurnInput builds the turn/start input payload: text-only unless
// multimodal is requested and the request carries image parts.
func buildTurnInput(req dispatch.HarnessRunRequest, multimodal bool) any {
	if !multimodal || len(req.MultimodalParts) == 0 {
		return []map[string]string{{"type": "text", "text": req.Prompt}}
	}
	parts := make([]map[string]string, 0, len(req.MultimodalParts)+1)
	if req.Prompt != "" {
		parts = append(parts, map[string]string{"type": "text", "text": req.Prompt})
	}
	for _, p := range req.MultimodalParts {
		if p.Text != "" {
			parts = append(parts, map[string]string{"type": "text", "text": p.Text})
		}
		if p.ImageRef != "" {
			parts = append(parts, map[string]string{"type": "image", "image": p.ImageRef})
		}
	}
	return parts
}

func (r *CodexRuntime) resolveCompletion(req dispatch.HarnessRunRequest, frame jsonrpcFrame, stderrBuf *bytes.Buffer) (dispatch.ResultEnvelope, int) {
	var params struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	_ = json.Unmarshal(frame.Params, &params)

	envelope := dispatch.ResultEnvelope{RunID: req.RunID, TaskID: req.TaskID}
	meta := envelope.EnsureMetadata()
	meta["runtime"] = "codex-app-server"
	meta["provider"] = "codex"

	if params.Status == "completed" {
		envelope.Status = dispatch.StatusSucceeded
		envelope.Summary = "Codex app-server execution completed"
		return envelope, 0
	}

	envelope.Status = dispatch.StatusFailed
	envelope.Summary = "Codex app-server execution failed"
	if params.Error != "" {
		envelope.Error = r.redact(params.Error)
	} else {
		tail := stderrBuf.String()
		if len(tail) > 5000 {
			tail = tail[len(tail)-5000:]
		}
		envelope.Error = r.redact(tail)
	}
	return envelope, 1
}

func (r *CodexRuntime) readLoop(ctx context.Context, stdout io.Reader, sink *runtimeevent.Sink, pending *pendingRequests, completion chan<- jsonrpcFrame) {
	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var frame jsonrpcFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeLog, Content: r.redact(string(line))})
			continue
		}

		if frame.ID != nil && frame.Method == "" {
			if pending.resolve(frame) {
				continue
			}
		}

		r.handleNotification(ctx, frame, sink, completion)
	}
}

func (r *CodexRuntime) handleNotification(ctx context.Context, frame jsonrpcFrame, sink *runtimeevent.Sink, completion chan<- jsonrpcFrame) {
	switch frame.Method {
	case "turn/completed":
		select {
		case completion <- frame:
		default:
		}
	case "turn/started":
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeRunLifecycle, Content: "turn_started"})
	case "item/agentMessage/delta":
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeAssistantDelta, Content: r.redact(deltaText(frame.Params))})
	case "item/reasoning/textDelta", "item/reasoning/summaryDelta":
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeReasoningDelta, Content: r.redact(deltaText(frame.Params))})
	case "item/commandExecution/outputDelta":
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeCommandDelta, Content: r.redact(deltaText(frame.Params))})
	case "item/fileChange/outputDelta":
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeDiffUpdated, Content: r.redact(deltaText(frame.Params))})
	case "turn/diff/updated":
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeDiffUpdated, Content: r.redact(deltaText(frame.Params))})
	case "error":
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeDiagnostic, Content: r.redact(deltaText(frame.Params))})
	}
}

func deltaText(params json.RawMessage) string {
	var withDelta struct {
		Delta string `json:"delta"`
		Text  string `json:"text"`
	}
	if err := json.Unmarshal(params, &withDelta); err == nil {
		if withDelta.Delta != "" {
			return withDelta.Delta
		}
		return withDelta.Text
	}
	return string(params)
}
