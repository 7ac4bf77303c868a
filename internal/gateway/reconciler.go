package gateway

import (
	"context"
	"time"

	"github.com/agentsdashboard/runtime-gateway/internal/container"
	"github.com/agentsdashboard/runtime-gateway/internal/events"
)

// ActiveRunIDSource reports which run ids are currently admitted.
// *queue.Queue satisfies this via ActiveRunIDs.
type ActiveRunIDSource interface {
	ActiveRunIDs() map[string]bool
}

// Reconciler periodically sweeps for orphaned containers: containers
// labeled orchestrator=true whose run id is no longer in the queue's active
// set, left behind by a crashed or killed Executor. The sweep is
// ticker-driven; set-comparison
// follows the membership-set idiom used elsewhere in this tree
// (detected \ active).
type Reconciler struct {
	active   ActiveRunIDSource
	manager  container.Manager
	bus      EventBus
	interval time.Duration
}

// NewReconciler builds a Reconciler. interval is the sweep cadence.
func NewReconciler(active ActiveRunIDSource, mgr container.Manager, bus EventBus, interval time.Duration) *Reconciler {
	return &Reconciler{active: active, manager: mgr, bus: bus, interval: interval}
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// sweep reaps containers whose run id is not in the active set: detected \
// active.
func (r *Reconciler) sweep(ctx context.Context) {
	containers, err := r.manager.ListOrchestratorContainers(ctx)
	if err != nil {
		return
	}

	active := r.active.ActiveRunIDs()

	for _, c := range containers {
		if active[c.RunID] {
			continue
		}

		r.publish(events.NewEvent(events.OrphanDetected, c.RunID).WithPayload(c.ContainerID))
		if err := r.manager.RemoveForce(ctx, container.ContainerID(c.ContainerID)); err != nil {
			continue
		}
		r.publish(events.NewEvent(events.OrphanReaped, c.RunID).WithPayload(c.ContainerID))
	}
}

func (r *Reconciler) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}
