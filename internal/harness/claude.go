package harness

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/agentsdashboard/runtime-gateway/internal/redact"
	"github.com/agentsdashboard/runtime-gateway/internal/runtimeevent"
)

const (
	maxNormalizedEventsChars = 20000
	maxNormalizedEventsCount = 512
)

// ClaudeRuntime is the structured runtime for the Claude Code CLI,
// parsing its stream-json output into canonical events.
type ClaudeRuntime struct {
	command  string
	redactor *redact.Redactor
}

// NewClaudeRuntime builds a ClaudeRuntime invoking the given binary
// (default "claude" if empty).
func NewClaudeRuntime(command string, redactor *redact.Redactor) *ClaudeRuntime {
	if command == "" {
		command = "claude"
	}
	return &ClaudeRuntime{command: command, redactor: redactor}
}

func (r *ClaudeRuntime) redact(s string) string {
	if r.redactor == nil {
		return s
	}
	return r.redactor.Redact(s)
}

var modeHeaders = map[string]string{
	string(dispatch.ModePlan):   "You are in planning mode. Do not modify any files; produce a plan only.\n\n",
	string(dispatch.ModeReview): "You are in review mode. Do not modify any files; produce review feedback only.\n\n",
}

type blockState struct {
	blockType  string
	toolName   string
	toolCallID string
}

type claudeParseState struct {
	model               string
	stopReason          string
	usage               map[string]float64
	assistantBuf        strings.Builder
	blocks              map[int]*blockState
	streamEventCount    int
	toolLifecycleCount  int
	normalizedEvents    []string
	normalizedEventsLen int
	finalStatusRaw      string
	finalSummary        string
	finalError          string
	sawFinal            bool
}

func newClaudeParseState() *claudeParseState {
	return &claudeParseState{usage: make(map[string]float64), blocks: make(map[int]*blockState)}
}

func (s *claudeParseState) recordNormalized(kind string) {
	s.streamEventCount++
	if len(s.normalizedEvents) >= maxNormalizedEventsCount || s.normalizedEventsLen >= maxNormalizedEventsChars {
		return
	}
	s.normalizedEvents = append(s.normalizedEvents, kind)
	s.normalizedEventsLen += len(kind)
}

// Run spawns claude in stream-json mode and parses its output into
// canonical events, returning a structured envelope.
func (r *ClaudeRuntime) Run(ctx context.Context, req dispatch.HarnessRunRequest, sink *runtimeevent.Sink) (RuntimeResult, error) {
	runCtx, cancel := withTimeout(ctx, req)
	defer cancel()

	prompt := req.Prompt
	if header, ok := modeHeaders[req.Mode]; ok {
		prompt = header + prompt
	}

	args := []string{"-p", "--verbose", "--output-format", "stream-json", "--include-partial-messages"}
	if model := req.Env["CLAUDE_MODEL"]; model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, prompt)

	env := envSlice(os.Environ(), req.Env)
	env = append(env,
		"CLAUDE_OUTPUT_FORMAT=stream-json",
		"CLAUDE_INCLUDE_PARTIAL_MESSAGES=true",
		"HARNESS_RUNTIME_PROVIDER=claude-code",
		"NO_COLOR=1",
	)

	cmd := newCommand(runCtx, r.command, args, req.WorkspacePath, env)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return RuntimeResult{}, fmt.Errorf("claude: create stdout pipe: %w", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return RuntimeResult{}, fmt.Errorf("claude: start: %w", err)
	}

	state := newClaudeParseState()
	r.consumeStream(ctx, stdoutPipe, sink, state)

	runErr := cmd.Wait()
	code := exitCode(runErr)

	envelope := r.buildEnvelope(req, state, code)
	return RuntimeResult{Structured: true, ExitCode: code, Envelope: envelope}, nil
}

// claudeLine is the loosely-typed shape of one stream-json line. Fields
// are left as RawMessage/any where the shape varies by event type.
type claudeLine struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message,omitempty"`
	Index   int             `json:"index,omitempty"`
	Delta   json.RawMessage `json:"delta,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`

	Status  string `json:"status,omitempty"`
	Success *bool  `json:"success,omitempty"`
	IsError *bool  `json:"is_error,omitempty"`
	Summary string `json:"summary,omitempty"`

	StopReason string         `json:"stop_reason,omitempty"`
	Usage      map[string]any `json:"usage,omitempty"`
}

func (r *ClaudeRuntime) consumeStream(ctx context.Context, stdout io.Reader, sink *runtimeevent.Sink, state *claudeParseState) {
	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var parsed claudeLine
		if err := json.Unmarshal([]byte(line), &parsed); err != nil {
			sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeLog, Content: r.redact(line)})
			continue
		}

		r.handleLine(ctx, &parsed, line, sink, state)
	}
}

func (r *ClaudeRuntime) handleLine(ctx context.Context, line *claudeLine, raw string, sink *runtimeevent.Sink, state *claudeParseState) {
	switch line.Type {
	case "message_start":
		var msg struct {
			Model string `json:"model"`
		}
		_ = json.Unmarshal(line.Message, &msg)
		if msg.Model != "" {
			state.model = msg.Model
		}
		state.recordNormalized("message_start")
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeRunLifecycle, Content: "message_start"})

	case "content_block_start":
		var block struct {
			Type  string `json:"type"`
			ID    string `json:"id,omitempty"`
			Name  string `json:"name,omitempty"`
			Text  string `json:"text,omitempty"`
		}
		_ = json.Unmarshal(line.Content, &block)
		bs := &blockState{blockType: block.Type, toolName: block.Name, toolCallID: block.ID}
		state.blocks[line.Index] = bs
		if block.Type == "tool_use" {
			state.toolLifecycleCount++
			state.recordNormalized("tool_start")
			sink.Publish(ctx, runtimeevent.CanonicalEvent{
				Type:     runtimeevent.TypeRunLifecycle,
				Content:  fmt.Sprintf("tool_start:%s", block.Name),
				Metadata: map[string]string{"toolCallId": block.ID, "toolName": block.Name},
			})
		}
		if block.Text != "" {
			state.assistantBuf.WriteString(block.Text)
			sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeAssistantDelta, Content: r.redact(block.Text)})
		}

	case "content_block_delta":
		var delta struct {
			Type        string `json:"type"`
			Text        string `json:"text,omitempty"`
			PartialJSON string `json:"partial_json,omitempty"`
		}
		_ = json.Unmarshal(line.Delta, &delta)
		switch delta.Type {
		case "thinking_delta":
			state.recordNormalized("reasoning.delta")
			sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeReasoningDelta, Content: r.redact(delta.Text)})
		case "text_delta":
			state.assistantBuf.WriteString(delta.Text)
			state.recordNormalized("assistant.delta")
			sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeAssistantDelta, Content: r.redact(delta.Text)})
		case "input_json_delta":
			if bs, ok := state.blocks[line.Index]; ok && bs.blockType == "tool_use" {
				sink.Publish(ctx, runtimeevent.CanonicalEvent{
					Type:     runtimeevent.TypeRunLifecycle,
					Content:  "tool_input_delta",
					Metadata: map[string]string{"toolCallId": bs.toolCallID, "toolName": bs.toolName},
				})
			}
		}

	case "content_block_stop":
		if bs, ok := state.blocks[line.Index]; ok && bs.blockType == "tool_use" {
			state.recordNormalized("tool_stop")
			sink.Publish(ctx, runtimeevent.CanonicalEvent{
				Type:     runtimeevent.TypeRunLifecycle,
				Content:  fmt.Sprintf("tool_stop:%s", bs.toolName),
				Metadata: map[string]string{"toolCallId": bs.toolCallID, "toolName": bs.toolName},
			})
		}
		delete(state.blocks, line.Index)

	case "message_delta":
		if line.StopReason != "" {
			state.stopReason = line.StopReason
		}
		for k, v := range line.Usage {
			if n, ok := toFloat(v); ok {
				state.usage[k] = n
			}
		}
		state.recordNormalized("message_delta")

	case "result", "final_result", "final":
		r.resolveFinal(line, state)

	case "error":
		var errEvent struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(line.Error, &errEvent)
		state.finalStatusRaw = "failed"
		state.finalError = errEvent.Message
		state.sawFinal = true
		state.recordNormalized("error")
		sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeError, Content: r.redact(errEvent.Message)})

	default:
		if line.Type == "" && (line.Status != "" || line.Summary != "" || line.Success != nil || line.IsError != nil) {
			r.resolveFinal(line, state)
			return
		}
		state.recordNormalized("event:" + line.Type)
		if strings.Contains(strings.ToLower(line.Type), "tool") {
			state.toolLifecycleCount++
			sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeRunLifecycle, Content: line.Type})
		} else {
			sink.Publish(ctx, runtimeevent.CanonicalEvent{Type: runtimeevent.TypeLog, Content: r.redact(raw)})
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (r *ClaudeRuntime) resolveFinal(line *claudeLine, state *claudeParseState) {
	status := normalizeClaudeStatus(line.Status, line.Success, line.IsError)
	state.finalStatusRaw = status
	state.finalSummary = line.Summary
	if line.Error != nil {
		var errEvent struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(line.Error, &errEvent); err == nil && errEvent.Message != "" {
			state.finalError = errEvent.Message
		} else {
			var errStr string
			if err := json.Unmarshal(line.Error, &errStr); err == nil {
				state.finalError = errStr
			}
		}
	}
	state.sawFinal = true
}

// normalizeClaudeStatus applies the case-insensitive substring mapping
// used to collapse Claude's status strings to canonical result statuses.
func normalizeClaudeStatus(raw string, success, isError *bool) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "success"), strings.Contains(lower, "succeeded"), strings.Contains(lower, "complete"):
		return dispatch.StatusSucceeded
	case strings.Contains(lower, "fail"), strings.Contains(lower, "error"):
		return dispatch.StatusFailed
	case strings.Contains(lower, "cancel"):
		return dispatch.StatusCancelled
	case strings.Contains(lower, "pending"), strings.Contains(lower, "running"), strings.Contains(lower, "progress"):
		return dispatch.StatusPending
	}
	if isError != nil {
		if *isError {
			return dispatch.StatusFailed
		}
		return dispatch.StatusSucceeded
	}
	if success != nil {
		if *success {
			return dispatch.StatusSucceeded
		}
		return dispatch.StatusFailed
	}
	return "unknown"
}

func (r *ClaudeRuntime) buildEnvelope(req dispatch.HarnessRunRequest, state *claudeParseState, exitCode int) dispatch.ResultEnvelope {
	status := state.finalStatusRaw
	if status == "" {
		status = "unknown"
	}
	var final string
	if status != "unknown" {
		final = status
	}
	if final == dispatch.StatusSucceeded && exitCode != 0 {
		final = dispatch.StatusFailed
	}
	if final == "" {
		if exitCode == 0 {
			final = dispatch.StatusSucceeded
		} else {
			final = dispatch.StatusFailed
		}
	}

	summary := state.finalSummary
	if summary == "" {
		preview := strings.TrimSpace(state.assistantBuf.String())
		if len(preview) > 200 {
			preview = preview[:200]
		}
		if preview != "" {
			summary = preview
		} else {
			summary = "Claude run completed with no summary"
		}
	}

	envelope := dispatch.ResultEnvelope{
		RunID:   req.RunID,
		TaskID:  req.TaskID,
		Status:  final,
		Summary: summary,
	}
	if final == dispatch.StatusSucceeded {
		envelope.Error = ""
	} else {
		envelope.Error = state.finalError
	}

	meta := envelope.EnsureMetadata()
	meta["runtime"] = "claude-stream"
	meta["provider"] = "claude-code"
	meta["mode"] = req.Mode
	meta["exitCode"] = strconv.Itoa(exitCode)
	meta["streamEventCount"] = strconv.Itoa(state.streamEventCount)
	meta["toolLifecycleCount"] = strconv.Itoa(state.toolLifecycleCount)
	meta["assistantChars"] = strconv.Itoa(state.assistantBuf.Len())
	meta["stopReason"] = state.stopReason
	meta["model"] = state.model
	meta["normalizedEvents"] = strings.Join(state.normalizedEvents, ",")
	if len(state.usage) > 0 {
		envelope.Metrics = state.usage
	}

	return envelope
}
