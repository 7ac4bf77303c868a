package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyEnvOverrides_SetsOnlyPresentVars(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("GATEWAYD_MAX_SLOTS", "9")
	t.Setenv("HARNESS_CODEX_CMD", "/usr/local/bin/codex")

	applyEnvOverrides(cfg)

	require.Equal(t, 9, cfg.Server.MaxSlots)
	require.Equal(t, "/usr/local/bin/codex", cfg.Harness.CodexCommand)
	// Untouched fields keep their defaults.
	require.Equal(t, DefaultClaudeCommand, cfg.Harness.ClaudeCommand)
}

func TestApplyEnvOverrides_BlankValueIsIgnored(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("GATEWAYD_LOG_LEVEL", "")

	applyEnvOverrides(cfg)

	require.Equal(t, DefaultLogLevel, cfg.LogLevel)
}

func TestApplyEnvOverrides_InvalidIntIsIgnored(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("GATEWAYD_MAX_SLOTS", "not-a-number")

	applyEnvOverrides(cfg)

	require.Equal(t, DefaultMaxSlots, cfg.Server.MaxSlots)
}
