package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
)

// dockerStatsJSON mirrors the shape of the Docker Engine API's
// /containers/{id}/stats response, the fields this manager reads.
type dockerStatsJSON struct {
	CPUStats struct {
		CPUUsage struct {
			Total       uint64   `json:"total_usage"`
			PercpuUsage []uint64 `json:"percpu_usage"`
		} `json:"cpu_usage"`
		SystemUsage uint64 `json:"system_cpu_usage"`
	} `json:"cpu_stats"`
	PreCPUStats struct {
		CPUUsage struct {
			Total uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemUsage uint64 `json:"system_cpu_usage"`
	} `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`
	Networks map[string]struct {
		RxBytes uint64 `json:"rx_bytes"`
		TxBytes uint64 `json:"tx_bytes"`
	} `json:"networks"`
	BlkioStats struct {
		IoServiceBytesRecursive []struct {
			Op    string `json:"op"`
			Value uint64 `json:"value"`
		} `json:"io_service_bytes_recursive"`
	} `json:"blkio_stats"`
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// dockerManager implements Manager against the Docker Engine API directly,
// preferred over CLIManager when a daemon socket is reachable.
type dockerManager struct {
	cli *client.Client
}

// NewDockerManager connects to the local Docker daemon using the standard
// DOCKER_HOST/DOCKER_* environment variables and verifies it is reachable.
func NewDockerManager() (Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker: connect: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker: ping: %w", err)
	}

	return &dockerManager{cli: cli}, nil
}

func (m *dockerManager) Create(ctx context.Context, cfg ContainerConfig) (ContainerID, error) {
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, k+"="+v)
	}

	labels := map[string]string{OrchestratorLabel: "true"}
	if cfg.RunID != "" {
		labels[RunIDLabel] = cfg.RunID
	}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	containerCfg := &container.Config{
		Image:      cfg.Image,
		Cmd:        cfg.Cmd,
		Env:        env,
		WorkingDir: cfg.WorkDir,
		Labels:     labels,
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory: parseDockerMemLimit(cfg.MemLimit),
		},
		ReadonlyRootfs: cfg.ReadOnlyRootfs,
	}
	if cfg.CPULimit > 0 {
		hostCfg.Resources.NanoCPUs = int64(cfg.CPULimit * 1e9)
	}
	if cfg.NetworkDisabled {
		hostCfg.NetworkMode = "none"
	}
	if cfg.WorkspaceHostPath != "" && cfg.WorkDir != "" {
		hostCfg.Binds = append(hostCfg.Binds, cfg.WorkspaceHostPath+":"+cfg.WorkDir)
	}
	if cfg.ArtifactsHostPath != "" {
		hostCfg.Binds = append(hostCfg.Binds, cfg.ArtifactsHostPath+":/artifacts")
	}

	resp, err := m.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, cfg.Name)
	if err != nil {
		return "", fmt.Errorf("docker: create: %w", err)
	}
	return ContainerID(resp.ID), nil
}

func (m *dockerManager) Start(ctx context.Context, id ContainerID) error {
	if err := m.cli.ContainerStart(ctx, string(id), container.StartOptions{}); err != nil {
		return fmt.Errorf("docker: start: %w", err)
	}
	return nil
}

func (m *dockerManager) Wait(ctx context.Context, id ContainerID) (int, error) {
	statusCh, errCh := m.cli.ContainerWait(ctx, string(id), container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return -1, fmt.Errorf("docker: wait: %w", err)
		}
		return -1, fmt.Errorf("docker: wait: closed without status")
	case status := <-statusCh:
		return int(status.StatusCode), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (m *dockerManager) Logs(ctx context.Context, id ContainerID) (io.ReadCloser, error) {
	return m.cli.ContainerLogs(ctx, string(id), container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true})
}

func (m *dockerManager) StreamLogs(ctx context.Context, id ContainerID, onChunk LogChunkFunc) error {
	rc, err := m.cli.ContainerLogs(ctx, string(id), container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true})
	if err != nil {
		return fmt.Errorf("docker: logs: %w", err)
	}
	defer rc.Close()

	buf := make([]byte, 32*1024)
	for {
		n, readErr := rc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			onChunk(chunk)
		}
		if readErr != nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return ctx.Err()
}

func (m *dockerManager) Stats(ctx context.Context, id ContainerID) (ContainerMetrics, error) {
	resp, err := m.cli.ContainerStatsOneShot(ctx, string(id))
	if err != nil {
		return ContainerMetrics{}, fmt.Errorf("docker: stats: %w", err)
	}
	defer resp.Body.Close()

	var raw dockerStatsJSON
	if err := decodeJSON(resp.Body, &raw); err != nil {
		return ContainerMetrics{}, fmt.Errorf("docker: decode stats: %w", err)
	}
	return computeMetrics(raw), nil
}

// computeMetrics derives ContainerMetrics from a decoded stats payload,
// using the same cpu/mem/net/blkio formulas as `docker stats`.
func computeMetrics(raw dockerStatsJSON) ContainerMetrics {
	cpuDelta := float64(raw.CPUStats.CPUUsage.Total) - float64(raw.PreCPUStats.CPUUsage.Total)
	sysDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)
	cpuPercent := 0.0
	if sysDelta > 0 && cpuDelta > 0 {
		cpuPercent = (cpuDelta / sysDelta) * float64(len(raw.CPUStats.CPUUsage.PercpuUsage)) * 100
	}

	memPercent := 0.0
	if raw.MemoryStats.Limit > 0 {
		memPercent = float64(raw.MemoryStats.Usage) / float64(raw.MemoryStats.Limit) * 100
	}

	var rx, tx uint64
	for _, n := range raw.Networks {
		rx += n.RxBytes
		tx += n.TxBytes
	}

	var blkRead, blkWrite uint64
	for _, e := range raw.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(e.Op) {
		case "read":
			blkRead += e.Value
		case "write":
			blkWrite += e.Value
		}
	}

	return ContainerMetrics{
		CPUPercent:      cpuPercent,
		MemUsageBytes:   raw.MemoryStats.Usage,
		MemLimitBytes:   raw.MemoryStats.Limit,
		MemPercent:      memPercent,
		NetRxBytes:      rx,
		NetTxBytes:      tx,
		BlockReadBytes:  blkRead,
		BlockWriteBytes: blkWrite,
	}
}

func (m *dockerManager) Stop(ctx context.Context, id ContainerID, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if err := m.cli.ContainerStop(ctx, string(id), container.StopOptions{Timeout: &secs}); err != nil {
		return fmt.Errorf("docker: stop: %w", err)
	}
	return nil
}

func (m *dockerManager) Remove(ctx context.Context, id ContainerID) error {
	if err := m.cli.ContainerRemove(ctx, string(id), container.RemoveOptions{}); err != nil {
		return fmt.Errorf("docker: remove: %w", err)
	}
	return nil
}

func (m *dockerManager) RemoveForce(ctx context.Context, id ContainerID) error {
	if err := m.cli.ContainerRemove(ctx, string(id), container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("docker: force remove: %w", err)
	}
	return nil
}

func (m *dockerManager) ListOrchestratorContainers(ctx context.Context) ([]dispatch.OrchestratorContainer, error) {
	f := filters.NewArgs(filters.Arg("label", OrchestratorLabel+"=true"))
	containers, err := m.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, fmt.Errorf("docker: list: %w", err)
	}

	out := make([]dispatch.OrchestratorContainer, 0, len(containers))
	for _, c := range containers {
		out = append(out, dispatch.OrchestratorContainer{
			ContainerID: c.ID,
			RunID:       c.Labels[RunIDLabel],
			State:       c.State,
		})
	}
	return out, nil
}

func parseDockerMemLimit(s string) int64 {
	if s == "" {
		return 0
	}
	return int64(parseByteSize(s))
}

var _ Manager = (*dockerManager)(nil)
