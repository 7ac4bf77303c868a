package container

// ContainerID is a unique identifier for a container.
// This is the full container ID returned by `docker create`, not the short form.
type ContainerID string

// ContainerConfig specifies container creation parameters.
type ContainerConfig struct {
	// Image is the container image (e.g., "runtime-gateway-harness:latest")
	Image string

	// Name is the container name (e.g., "gateway-run-abc123")
	Name string

	// Env contains environment variables to set in the container
	Env map[string]string

	// Cmd is the command and arguments to run
	Cmd []string

	// WorkDir is the working directory inside the container
	WorkDir string

	// Labels are applied to the container. Create always adds
	// orchestrator=true and run_id=<RunID> in addition to these.
	Labels map[string]string
	RunID  string

	// WorkspaceHostPath, if set, is bind-mounted into the container at
	// WorkDir.
	WorkspaceHostPath string
	// ArtifactsHostPath, if set, is bind-mounted into the container for
	// artifact extraction.
	ArtifactsHostPath string

	CPULimit        float64
	MemLimit        string
	NetworkDisabled bool
	ReadOnlyRootfs  bool
}

// OrchestratorLabel and RunIDLabel name the labels every gateway-created
// container carries, used by the Orphan Reconciler to discover them.
const (
	OrchestratorLabel = "orchestrator"
	RunIDLabel        = "run_id"
)

// ContainerMetrics is the point-in-time resource snapshot returned by
// Stats.
type ContainerMetrics struct {
	CPUPercent      float64
	MemUsageBytes   uint64
	MemLimitBytes   uint64
	MemPercent      float64
	NetRxBytes      uint64
	NetTxBytes      uint64
	BlockReadBytes  uint64
	BlockWriteBytes uint64
}
