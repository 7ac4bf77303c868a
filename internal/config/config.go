package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the gateway daemon's configuration, loaded from a YAML file
// and layered with environment variable overrides.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Queue      QueueConfig      `yaml:"queue"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Container  ContainerConfig  `yaml:"container"`
	Harness    HarnessConfig    `yaml:"harness"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	LogLevel   string           `yaml:"log_level"`
}

// ServerConfig controls job admission.
type ServerConfig struct {
	MaxSlots        int    `yaml:"max_slots"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// QueueConfig holds the configured queue capacity. It is validated and
// reported in the startup log; the queue's channel depth is fixed inside
// the queue package and admission is bounded by ServerConfig.MaxSlots.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// WorkspaceConfig locates on-disk state for the Git Workspace Manager and
// extracted artifacts.
type WorkspaceConfig struct {
	StorageRoot    string `yaml:"storage_root"`
	WorkspacesRoot string `yaml:"workspaces_root"`
	ArtifactsRoot  string `yaml:"artifacts_root"`
}

// ContainerConfig holds container defaults (image and resource limits).
// They are loaded and validated but not applied to harness runs: the
// executor uses its own built-in CPU/memory defaults, overridden by
// per-request SandboxProfile values.
type ContainerConfig struct {
	Image           string  `yaml:"image"`
	CPULimit        float64 `yaml:"cpu_limit"`
	MemLimit        string  `yaml:"mem_limit"`
	NetworkDisabled bool    `yaml:"network_disabled"`
	ReadOnlyRootfs  bool    `yaml:"read_only_rootfs"`
}

// HarnessConfig locates the harness binaries the registry shells out to.
type HarnessConfig struct {
	ClaudeCommand  string `yaml:"claude_command"`
	CodexCommand   string `yaml:"codex_command"`
	DefaultMode    string `yaml:"default_mode"`
	DefaultTimeout string `yaml:"default_timeout"`
}

// ReconcilerConfig controls the orphan sweep cadence.
type ReconcilerConfig struct {
	Interval string `yaml:"interval"`
}

// HeartbeatConfig controls the daemon health broadcast cadence.
type HeartbeatConfig struct {
	WarmupInterval     string `yaml:"warmup_interval"`
	Interval           string `yaml:"interval"`
	StalenessThreshold string `yaml:"staleness_threshold"`
	PingTimeout        string `yaml:"ping_timeout"`
}

// Load reads configuration from path, applies environment overrides, and
// validates the result. If path does not exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
