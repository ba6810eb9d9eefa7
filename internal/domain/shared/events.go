package shared

import (
	"time"
)

// EventType represents the type of domain event published on the internal bus.
// These are process-internal signals, distinct from the telemetry events that
// the event log persists.
type EventType string

const (
	// Telemetry events
	EventTelemetryRecorded EventType = "telemetry.recorded"
	EventTelemetryDropped  EventType = "telemetry.dropped"
	EventTelemetryPurged   EventType = "telemetry.purged"

	// Cache events
	EventCacheInvalidated EventType = "cache.invalidated"

	// System events
	EventSweepCompleted EventType = "system.sweep_completed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// Payload returns the event data as a map for logging and export.
	Payload() map[string]any
}

// EventHandler consumes domain events from the bus.
type EventHandler func(Event) error

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// EventType implements Event.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent creates a new base event stamped with the current time.
func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{Type: eventType, Timestamp: time.Now().UTC()}
}

// TelemetryRecordedEvent is published after an event has been accepted into
// the log. Subscribers use it for cache invalidation and best-effort export.
type TelemetryRecordedEvent struct {
	BaseEvent
	EventID   string `json:"event_id"`
	Kind      string `json:"kind"`
	ActorHash string `json:"actor_hash,omitempty"`
}

// NewTelemetryRecordedEvent creates a TelemetryRecordedEvent.
func NewTelemetryRecordedEvent(eventID, kind, actorHash string) TelemetryRecordedEvent {
	return TelemetryRecordedEvent{
		BaseEvent: NewBaseEvent(EventTelemetryRecorded),
		EventID:   eventID,
		Kind:      kind,
		ActorHash: actorHash,
	}
}

// Payload implements Event.
func (e TelemetryRecordedEvent) Payload() map[string]any {
	return map[string]any{
		"event_id":   e.EventID,
		"kind":       e.Kind,
		"actor_hash": e.ActorHash,
	}
}

// TelemetryDroppedEvent is published when ingestion silently drops an event,
// so the drop is still observable in logs and metrics.
type TelemetryDroppedEvent struct {
	BaseEvent
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// NewTelemetryDroppedEvent creates a TelemetryDroppedEvent.
func NewTelemetryDroppedEvent(kind, reason string) TelemetryDroppedEvent {
	return TelemetryDroppedEvent{
		BaseEvent: NewBaseEvent(EventTelemetryDropped),
		Kind:      kind,
		Reason:    reason,
	}
}

// Payload implements Event.
func (e TelemetryDroppedEvent) Payload() map[string]any {
	return map[string]any{"kind": e.Kind, "reason": e.Reason}
}

// TelemetryPurgedEvent is published after a retention sweep rewrote the store.
type TelemetryPurgedEvent struct {
	BaseEvent
	Removed  int `json:"removed"`
	Retained int `json:"retained"`
}

// NewTelemetryPurgedEvent creates a TelemetryPurgedEvent.
func NewTelemetryPurgedEvent(removed, retained int) TelemetryPurgedEvent {
	return TelemetryPurgedEvent{
		BaseEvent: NewBaseEvent(EventTelemetryPurged),
		Removed:   removed,
		Retained:  retained,
	}
}

// Payload implements Event.
func (e TelemetryPurgedEvent) Payload() map[string]any {
	return map[string]any{"removed": e.Removed, "retained": e.Retained}
}
