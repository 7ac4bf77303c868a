// Package gateway wires the Job Queue, Harness Executor, and the gateway's
// housekeeping loops (orphan reconciler, health, heartbeat) into the
// running service, and exposes the Go-native boundary to the control
// plane.
package gateway

import (
	"context"

	"github.com/agentsdashboard/runtime-gateway/internal/dispatch"
	"github.com/agentsdashboard/runtime-gateway/internal/events"
)

// Dispatcher is the inbound boundary: what a control plane calls to submit
// and cancel runs. No transport is bound to it; an RPC or HTTP layer in the
// control plane adapts onto this interface.
type Dispatcher interface {
	// Dispatch validates and admits req, returning its run id immediately.
	// Execution happens asynchronously; results surface via EventBus.
	Dispatch(ctx context.Context, req dispatch.DispatchRequest) (runID string, err error)

	// Cancel requests cancellation of an in-flight run. Returns false if
	// runID is not currently active.
	Cancel(runID string) bool
}

// EventBus is the outbound boundary: what the gateway calls to publish
// operational events for the control plane to observe. Grounded on
// internal/events.Bus, which satisfies this interface directly.
type EventBus interface {
	Publish(events.Event)
}
