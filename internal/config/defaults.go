package config

const (
	DefaultMaxSlots        = 4
	DefaultShutdownTimeout = "30s"

	DefaultQueueCapacity = 4096

	DefaultStorageRoot    = "/var/lib/gatewayd"
	DefaultWorkspacesRoot = "/var/lib/gatewayd/workspaces"
	DefaultArtifactsRoot  = "/var/lib/gatewayd/artifacts"

	DefaultContainerImage    = "runtime-gateway-harness:latest"
	DefaultContainerCPULimit = 1.5
	DefaultContainerMemLimit = "2g"

	DefaultClaudeCommand  = "claude"
	DefaultCodexCommand   = "codex"
	DefaultHarnessMode    = "command"
	DefaultHarnessTimeout = "30m"

	DefaultReconcilerInterval = "60s"

	DefaultHeartbeatWarmup             = "5s"
	DefaultHeartbeatInterval           = "30s"
	DefaultHeartbeatStalenessThreshold = "90s"
	DefaultHeartbeatPingTimeout        = "5s"

	DefaultLogLevel = "info"
)

// DefaultConfig returns a Config with all default values applied.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxSlots:        DefaultMaxSlots,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Queue: QueueConfig{
			Capacity: DefaultQueueCapacity,
		},
		Workspace: WorkspaceConfig{
			StorageRoot:    DefaultStorageRoot,
			WorkspacesRoot: DefaultWorkspacesRoot,
			ArtifactsRoot:  DefaultArtifactsRoot,
		},
		Container: ContainerConfig{
			Image:    DefaultContainerImage,
			CPULimit: DefaultContainerCPULimit,
			MemLimit: DefaultContainerMemLimit,
		},
		Harness: HarnessConfig{
			ClaudeCommand:  DefaultClaudeCommand,
			CodexCommand:   DefaultCodexCommand,
			DefaultMode:    DefaultHarnessMode,
			DefaultTimeout: DefaultHarnessTimeout,
		},
		Reconciler: ReconcilerConfig{
			Interval: DefaultReconcilerInterval,
		},
		Heartbeat: HeartbeatConfig{
			WarmupInterval:     DefaultHeartbeatWarmup,
			Interval:           DefaultHeartbeatInterval,
			StalenessThreshold: DefaultHeartbeatStalenessThreshold,
			PingTimeout:        DefaultHeartbeatPingTimeout,
		},
		LogLevel: DefaultLogLevel,
	}
}
