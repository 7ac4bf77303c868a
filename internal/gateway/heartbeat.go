package gateway

import (
	"context"
	"time"

	"github.com/agentsdashboard/runtime-gateway/internal/events"
)

// SlotSource reports admission capacity for the heartbeat payload.
// *queue.Queue satisfies this.
type SlotSource interface {
	ActiveSlots() int
}

// HeartbeatPayload is the status snapshot broadcast on every tick.
type HeartbeatPayload struct {
	ActiveSlots int  `json:"active_slots"`
	Healthy     bool `json:"healthy"`
}

// Heartbeat broadcasts the daemon's status on a short warmup delay followed
// by a steady interval: a fast first beat so a freshly started gateway is
// observable quickly, then a slower steady cadence.
type Heartbeat struct {
	slots    SlotSource
	health   *Health
	bus      EventBus
	warmup   time.Duration
	interval time.Duration
}

// NewHeartbeat builds a Heartbeat.
func NewHeartbeat(slots SlotSource, health *Health, bus EventBus, warmup, interval time.Duration) *Heartbeat {
	return &Heartbeat{slots: slots, health: health, bus: bus, warmup: warmup, interval: interval}
}

// Run sends the first heartbeat after warmup, then one every interval,
// until ctx is cancelled.
func (h *Heartbeat) Run(ctx context.Context) {
	select {
	case <-time.After(h.warmup):
		h.beat()
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.beat()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Heartbeat) beat() {
	if h.bus == nil {
		return
	}
	h.bus.Publish(events.NewEvent(events.HeartbeatSent, "").WithPayload(HeartbeatPayload{
		ActiveSlots: h.slots.ActiveSlots(),
		Healthy:     h.health.IsHealthy(),
	}))
}
