package container

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	units "github.com/docker/go-units"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
)

// CLIManager implements Manager using docker/podman CLI.
type CLIManager struct {
	runtime string // "docker" or "podman"
}

// NewCLIManager creates a Manager using the specified runtime.
// Use DetectRuntime() to find an available runtime first.
func NewCLIManager(runtime string) *CLIManager {
	return &CLIManager{runtime: runtime}
}

// Create creates a new container but does not start it.
func (m *CLIManager) Create(ctx context.Context, cfg ContainerConfig) (ContainerID, error) {
	args := []string{"create", "--name", cfg.Name}

	args = append(args, "--label", OrchestratorLabel+"=true")
	if cfg.RunID != "" {
		args = append(args, "--label", RunIDLabel+"="+cfg.RunID)
	}
	for k, v := range cfg.Labels {
		args = append(args, "--label", fmt.Sprintf("%s=%s", k, v))
	}

	// Add environment variables
	for k, v := range cfg.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	// Set working directory if specified
	if cfg.WorkDir != "" {
		args = append(args, "-w", cfg.WorkDir)
	}
	if cfg.WorkspaceHostPath != "" && cfg.WorkDir != "" {
		args = append(args, "-v", cfg.WorkspaceHostPath+":"+cfg.WorkDir)
	}
	if cfg.ArtifactsHostPath != "" {
		args = append(args, "-v", cfg.ArtifactsHostPath+":/artifacts")
	}
	if cfg.CPULimit > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(cfg.CPULimit, 'f', -1, 64))
	}
	if cfg.MemLimit != "" {
		args = append(args, "--memory", cfg.MemLimit)
	}
	if cfg.NetworkDisabled {
		args = append(args, "--network", "none")
	}
	if cfg.ReadOnlyRootfs {
		args = append(args, "--read-only")
	}

	// Image and command come last
	args = append(args, cfg.Image)
	args = append(args, cfg.Cmd...)

	cmd := exec.CommandContext(ctx, m.runtime, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to create container: %s", exitErr.Stderr)
		}
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	return ContainerID(strings.TrimSpace(string(output))), nil
}

// Start starts a previously created container.
func (m *CLIManager) Start(ctx context.Context, id ContainerID) error {
	cmd := exec.CommandContext(ctx, m.runtime, "start", string(id))

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to start container: %s", output)
	}

	return nil
}

// Wait blocks until the container exits and returns the exit code.
func (m *CLIManager) Wait(ctx context.Context, id ContainerID) (int, error) {
	cmd := exec.CommandContext(ctx, m.runtime, "wait", string(id))
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return -1, fmt.Errorf("failed to wait for container: %s", exitErr.Stderr)
		}
		return -1, fmt.Errorf("failed to wait for container: %w", err)
	}

	exitCode, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return -1, fmt.Errorf("failed to parse exit code: %w", err)
	}

	return exitCode, nil
}

// Logs returns a stream of container logs (stdout and stderr combined).
func (m *CLIManager) Logs(ctx context.Context, id ContainerID) (io.ReadCloser, error) {
	// -f follows the log output until container exits
	cmd := exec.CommandContext(ctx, m.runtime, "logs", "-f", string(id))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start log streaming: %w", err)
	}

	// Return the pipe; caller is responsible for closing
	// When ctx is canceled, the command will be killed and pipe will close
	return stdout, nil
}

// Stop stops a running container with the specified timeout.
func (m *CLIManager) Stop(ctx context.Context, id ContainerID, timeout time.Duration) error {
	timeoutSecs := int(timeout.Seconds())
	cmd := exec.CommandContext(ctx, m.runtime, "stop", "-t", strconv.Itoa(timeoutSecs), string(id))

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to stop container: %s", output)
	}

	return nil
}

// Remove removes a stopped container.
func (m *CLIManager) Remove(ctx context.Context, id ContainerID) error {
	cmd := exec.CommandContext(ctx, m.runtime, "rm", string(id))

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to remove container: %s", output)
	}

	return nil
}

// RemoveForce removes a container regardless of its running state.
func (m *CLIManager) RemoveForce(ctx context.Context, id ContainerID) error {
	cmd := exec.CommandContext(ctx, m.runtime, "rm", "-f", string(id))

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to force-remove container: %s", output)
	}

	return nil
}

// StreamLogs delivers log chunks as they arrive until the container exits
// or ctx cancels.
func (m *CLIManager) StreamLogs(ctx context.Context, id ContainerID, onChunk LogChunkFunc) error {
	cmd := exec.CommandContext(ctx, m.runtime, "logs", "-f", string(id))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start log streaming: %w", err)
	}

	buf := make([]byte, 32*1024)
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onChunk(chunk)
		}
		if readErr != nil {
			break
		}
	}
	_ = cmd.Wait()
	return ctx.Err()
}

// dockerStats is the subset of `docker stats --format json` fields we use.
type dockerStats struct {
	CPUPerc   string `json:"CPUPerc"`
	MemUsage  string `json:"MemUsage"`
	MemPerc   string `json:"MemPerc"`
	NetIO     string `json:"NetIO"`
	BlockIO   string `json:"BlockIO"`
}

// Stats returns a point-in-time resource usage snapshot via a single
// non-streaming `docker stats` call.
func (m *CLIManager) Stats(ctx context.Context, id ContainerID) (ContainerMetrics, error) {
	cmd := exec.CommandContext(ctx, m.runtime, "stats", "--no-stream", "--format", "{{json .}}", string(id))
	output, err := cmd.Output()
	if err != nil {
		return ContainerMetrics{}, fmt.Errorf("failed to get container stats: %w", err)
	}

	var raw dockerStats
	if err := json.Unmarshal(bytes.TrimSpace(output), &raw); err != nil {
		return ContainerMetrics{}, fmt.Errorf("failed to parse container stats: %w", err)
	}

	metrics := ContainerMetrics{
		CPUPercent: parsePercent(raw.CPUPerc),
		MemPercent: parsePercent(raw.MemPerc),
	}
	metrics.MemUsageBytes, metrics.MemLimitBytes = parseUsageLimit(raw.MemUsage)
	metrics.NetRxBytes, metrics.NetTxBytes = parseSlashPair(raw.NetIO)
	metrics.BlockReadBytes, metrics.BlockWriteBytes = parseSlashPair(raw.BlockIO)

	return metrics, nil
}

func parsePercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseUsageLimit(s string) (uint64, uint64) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	return parseByteSize(parts[0]), parseByteSize(parts[1])
}

func parseSlashPair(s string) (uint64, uint64) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	return parseByteSize(parts[0]), parseByteSize(parts[1])
}

// parseByteSize parses docker's human-readable sizes, accepting both the
// long ("1.5GiB", "512kB") and bare ("2g", "512k") unit forms that
// `docker stats`/`docker --memory` accept.
func parseByteSize(s string) uint64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := units.RAMInBytes(s)
	if err != nil || n < 0 {
		return 0
	}
	return uint64(n)
}

// ListOrchestratorContainers lists containers labeled orchestrator=true.
func (m *CLIManager) ListOrchestratorContainers(ctx context.Context) ([]dispatch.OrchestratorContainer, error) {
	cmd := exec.CommandContext(ctx, m.runtime, "ps", "-a",
		"--filter", "label="+OrchestratorLabel+"=true",
		"--format", "{{.ID}}\t{{.Label \""+RunIDLabel+"\"}}\t{{.State}}")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list orchestrator containers: %w", err)
	}

	var containers []dispatch.OrchestratorContainer
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		c := dispatch.OrchestratorContainer{ContainerID: fields[0]}
		if len(fields) > 1 {
			c.RunID = fields[1]
		}
		if len(fields) > 2 {
			c.State = fields[2]
		}
		containers = append(containers, c)
	}
	return containers, nil
}

// Verify CLIManager implements Manager interface
var _ Manager = (*CLIManager)(nil)
