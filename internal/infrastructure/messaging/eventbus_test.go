package messaging

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
)

func TestEventBus_DeliversToMatchingSubscribers(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	var recorded, dropped int
	require.NoError(t, bus.Subscribe(shared.EventTelemetryRecorded, func(shared.Event) error {
		recorded++
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventTelemetryDropped, func(shared.Event) error {
		dropped++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewTelemetryRecordedEvent("ev-1", "interaction", "hash-1")))
	require.NoError(t, bus.Publish(shared.NewTelemetryRecordedEvent("ev-2", "interaction", "hash-1")))

	assert.Equal(t, 2, recorded)
	assert.Zero(t, dropped)
}

func TestEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	var seen []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(ev shared.Event) error {
		seen = append(seen, ev.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewTelemetryRecordedEvent("ev-1", "interaction", "hash-1")))
	require.NoError(t, bus.Publish(shared.NewTelemetryDroppedEvent("interaction", "invalid_payload")))

	assert.Equal(t, []shared.EventType{shared.EventTelemetryRecorded, shared.EventTelemetryDropped}, seen)
}

func TestEventBus_HandlerErrorDoesNotStopDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(nil)

	var second bool
	require.NoError(t, bus.Subscribe(shared.EventTelemetryRecorded, func(shared.Event) error {
		return errors.New("handler boom")
	}))
	require.NoError(t, bus.Subscribe(shared.EventTelemetryRecorded, func(shared.Event) error {
		second = true
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewTelemetryRecordedEvent("ev-1", "interaction", "hash-1")))
	assert.True(t, second)
}

func TestEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewTelemetryRecordedEvent("ev-1", "interaction", "hash-1"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventTelemetryRecorded, func(shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestEventBus_NilHandlerRejected(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	assert.Error(t, bus.Subscribe(shared.EventTelemetryRecorded, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}
