package events

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	event := NewEvent(RunCompleted, "run-1")
	handler(event)

	output := buf.String()
	if !strings.Contains(output, "[run.completed]") {
		t.Errorf("expected output to contain [run.completed], got: %s", output)
	}
	if !strings.Contains(output, "run-1") {
		t.Errorf("expected output to contain run-1, got: %s", output)
	}
}

func TestLogHandler_DefaultWriter(t *testing.T) {
	handler := LogHandler(LogConfig{})
	event := NewEvent(RunStarted, "run-1")
	handler(event) // should not panic
}

func TestLogHandler_IncludePayload(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf, IncludePayload: true})

	event := NewEvent(RunStarted, "run-1").WithPayload(map[string]string{"key": "value"})
	handler(event)

	output := buf.String()
	if !strings.Contains(output, "payload=") {
		t.Errorf("expected output to contain payload=, got: %s", output)
	}
}

func TestLogHandler_Error(t *testing.T) {
	var buf bytes.Buffer
	handler := LogHandler(LogConfig{Writer: &buf})

	event := NewEvent(RunFailed, "run-1")
	event.Error = "boom"
	handler(event)

	output := buf.String()
	if !strings.Contains(output, `error="boom"`) {
		t.Errorf("expected output to contain error=\"boom\", got: %s", output)
	}
}
