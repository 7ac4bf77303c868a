package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/agentsdashboard/runtime-gateway/internal/events"
	"github.com/stretchr/testify/require"
)

type fakeSlots struct {
	n int
}

func (f fakeSlots) ActiveSlots() int { return f.n }

func TestHeartbeat_SendsFirstBeatAfterWarmup(t *testing.T) {
	health := NewHealth(fakePinger{}, time.Hour, time.Second, time.Minute)
	health.check(context.Background())
	bus := &fakeBus{}
	hb := NewHeartbeat(fakeSlots{n: 2}, health, bus, 10*time.Millisecond, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	hb.Run(ctx)

	types := bus.types()
	require.Contains(t, types, events.HeartbeatSent)
}

func TestHeartbeat_PayloadReflectsSlotsAndHealth(t *testing.T) {
	health := NewHealth(fakePinger{}, time.Hour, time.Second, time.Minute)
	health.check(context.Background())
	bus := &fakeBus{}
	hb := NewHeartbeat(fakeSlots{n: 3}, health, bus, time.Millisecond, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	hb.Run(ctx)

	require.NotEmpty(t, bus.events)
	payload, ok := bus.events[0].Payload.(HeartbeatPayload)
	require.True(t, ok)
	require.Equal(t, 3, payload.ActiveSlots)
	require.True(t, payload.Healthy)
}
