package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/agentsdashboard/runtime-gateway/internal/container"
)

// Pinger checks whether the container runtime is reachable. Implementations
// should return quickly and respect ctx's deadline.
type Pinger interface {
	Ping(ctx context.Context) error
}

// dockerPinger adapts container.Manager to Pinger by listing orchestrator
// containers, the cheapest call every Manager implementation must support.
type dockerPinger struct {
	manager container.Manager
}

// NewDockerPinger builds a Pinger from a container.Manager.
func NewDockerPinger(mgr container.Manager) Pinger {
	return dockerPinger{manager: mgr}
}

func (p dockerPinger) Ping(ctx context.Context) error {
	_, err := p.manager.ListOrchestratorContainers(ctx)
	return err
}

// Health tracks the container daemon's reachability on a fixed interval,
// a ping every tick, a bounded per-ping deadline, and a
// staleness threshold past which the daemon is considered unhealthy even
// absent a hard ping failure (e.g. the ping goroutine itself wedged).
type Health struct {
	pinger             Pinger
	interval           time.Duration
	pingTimeout        time.Duration
	stalenessThreshold time.Duration

	mu       sync.RWMutex
	lastOK   time.Time
	lastErr  error
}

// NewHealth builds a Health checker. interval is the time between pings,
// pingTimeout bounds each individual ping, stalenessThreshold is how long a
// successful ping may age before IsHealthy reports false.
func NewHealth(pinger Pinger, interval, pingTimeout, stalenessThreshold time.Duration) *Health {
	return &Health{
		pinger:             pinger,
		interval:           interval,
		pingTimeout:        pingTimeout,
		stalenessThreshold: stalenessThreshold,
	}
}

// Run pings on a fixed interval until ctx is cancelled.
func (h *Health) Run(ctx context.Context) {
	h.check(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Health) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, h.pingTimeout)
	defer cancel()

	err := h.pinger.Ping(pingCtx)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastErr = err
	if err == nil {
		h.lastOK = time.Now()
	}
}

// IsHealthy reports whether the most recent ping succeeded and is recent
// enough to trust.
func (h *Health) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastErr != nil {
		return false
	}
	if h.lastOK.IsZero() {
		return false
	}
	return time.Since(h.lastOK) <= h.stalenessThreshold
}

// LastError returns the error from the most recent ping, or nil.
func (h *Health) LastError() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}
