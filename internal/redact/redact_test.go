package redact

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactor_WithEnv(t *testing.T) {
	env := map[string]string{
		"ANTHROPIC_API_KEY": "sekret-value-123456",
		"GITHUB_TOKEN":      "ghp_abcdefghijklmnopqrst",
		"HOME":              "/root",
	}
	r := WithEnv(nil, env)

	out := r.Redact("using key sekret-value-123456 and token ghp_abcdefghijklmnopqrst in /root")
	require.NotContains(t, out, "sekret-value-123456")
	require.NotContains(t, out, "ghp_abcdefghijklmnopqrst")
	require.Contains(t, out, "/root")
}

func TestRedactor_CommonPatterns(t *testing.T) {
	r := New(CommonPatterns())
	out := r.Redact("leaked sk-ant-api03-" + strings.Repeat("x", 24) + " here")
	require.NotContains(t, out, "sk-ant-api03")
	require.Contains(t, out, "***REDACTED***")
}

func TestRedactor_EmptyText(t *testing.T) {
	r := New(CommonPatterns())
	require.Equal(t, "", r.Redact(""))
}

func TestRedactor_NilRedactor(t *testing.T) {
	var r *Redactor
	require.Equal(t, "plain text", r.Redact("plain text"))
}
