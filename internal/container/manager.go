package container

import (
	"context"
	"io"
	"time"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
)

// LogChunkFunc receives one chunk of container log output, in arrival
// order, for StreamLogs.
type LogChunkFunc func(chunk []byte)

// Manager provides container lifecycle management.
// Implementations must be safe for concurrent use.
type Manager interface {
	// Create creates a new container but does not start it.
	// Returns the container ID on success. Create always labels the
	// container orchestrator=true, run_id=cfg.RunID.
	Create(ctx context.Context, cfg ContainerConfig) (ContainerID, error)

	// Start starts a previously created container.
	Start(ctx context.Context, id ContainerID) error

	// Wait blocks until the container exits and returns the exit code.
	// Returns an error if the container doesn't exist or wait fails.
	Wait(ctx context.Context, id ContainerID) (exitCode int, err error)

	// Logs returns a stream of container logs (stdout and stderr combined).
	// The caller must close the returned ReadCloser.
	Logs(ctx context.Context, id ContainerID) (io.ReadCloser, error)

	// StreamLogs delivers byte-chunks in arrival order until the container
	// terminates or ctx cancels, whichever comes first; it does not block
	// waiting for termination to flush buffered logs.
	StreamLogs(ctx context.Context, id ContainerID, onChunk LogChunkFunc) error

	// Stats returns a point-in-time resource usage snapshot.
	Stats(ctx context.Context, id ContainerID) (ContainerMetrics, error)

	// Stop stops a running container. Sends SIGTERM, waits for timeout,
	// then sends SIGKILL if still running.
	Stop(ctx context.Context, id ContainerID, timeout time.Duration) error

	// Remove removes a container. The container must be stopped first.
	Remove(ctx context.Context, id ContainerID) error

	// RemoveForce removes a container regardless of its running state.
	RemoveForce(ctx context.Context, id ContainerID) error

	// ListOrchestratorContainers lists containers bearing the
	// orchestrator=true label, for the Orphan Reconciler.
	ListOrchestratorContainers(ctx context.Context) ([]dispatch.OrchestratorContainer, error)
}

// NewManager picks the most direct Manager available: the Docker Engine
// API SDK if a daemon socket answers, otherwise a CLI-driven fallback
// against whichever of docker/podman DetectRuntime finds.
func NewManager() (Manager, error) {
	if mgr, err := NewDockerManager(); err == nil {
		return mgr, nil
	}

	runtime, err := DetectRuntime()
	if err != nil {
		return nil, err
	}
	return NewCLIManager(runtime), nil
}
