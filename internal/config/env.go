package config

import (
	"os"
	"strconv"
)

// envOverrides maps environment variables to config field setters. Each
// override is applied only when the variable is set and non-empty.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string)
}{
	{envVar: "GATEWAYD_MAX_SLOTS", apply: func(c *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.MaxSlots = n
		}
	}},
	{envVar: "GATEWAYD_SHUTDOWN_TIMEOUT", apply: func(c *Config, v string) {
		c.Server.ShutdownTimeout = v
	}},
	{envVar: "GATEWAYD_STORAGE_ROOT", apply: func(c *Config, v string) {
		c.Workspace.StorageRoot = v
	}},
	{envVar: "GATEWAYD_WORKSPACES_ROOT", apply: func(c *Config, v string) {
		c.Workspace.WorkspacesRoot = v
	}},
	{envVar: "GATEWAYD_ARTIFACTS_ROOT", apply: func(c *Config, v string) {
		c.Workspace.ArtifactsRoot = v
	}},
	{envVar: "GATEWAYD_CONTAINER_IMAGE", apply: func(c *Config, v string) {
		c.Container.Image = v
	}},
	{envVar: "HARNESS_CLAUDE_CMD", apply: func(c *Config, v string) {
		c.Harness.ClaudeCommand = v
	}},
	{envVar: "HARNESS_CODEX_CMD", apply: func(c *Config, v string) {
		c.Harness.CodexCommand = v
	}},
	{envVar: "GATEWAYD_LOG_LEVEL", apply: func(c *Config, v string) {
		c.LogLevel = v
	}},
}

// applyEnvOverrides modifies config in place with environment variable values.
func applyEnvOverrides(cfg *Config) {
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			override.apply(cfg, val)
		}
	}
}
