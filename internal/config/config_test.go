package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultMaxSlots, cfg.Server.MaxSlots)
	require.Equal(t, DefaultClaudeCommand, cfg.Harness.ClaudeCommand)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewayd.yaml")
	yaml := `
server:
  max_slots: 8
workspace:
  storage_root: /data/gatewayd
harness:
  claude_command: /opt/bin/claude
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Server.MaxSlots)
	require.Equal(t, "/data/gatewayd", cfg.Workspace.StorageRoot)
	require.Equal(t, "/opt/bin/claude", cfg.Harness.ClaudeCommand)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, DefaultContainerImage, cfg.Container.Image)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewayd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  max_slots: 8\n"), 0o644))

	t.Setenv("GATEWAYD_MAX_SLOTS", "16")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 16, cfg.Server.MaxSlots)
}

func TestLoad_InvalidYAMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewayd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [this is not a mapping"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_InvalidValueFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatewayd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  max_slots: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
