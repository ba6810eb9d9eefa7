// Package messaging implements the in-process event bus that connects the
// write side (event recording) to its side effects: cache invalidation and
// best-effort metrics export.
package messaging

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
)

// ErrEventBusClosed is returned when publishing to a closed bus.
var ErrEventBusClosed = errors.New("messaging: event bus closed")

// InMemoryEventBus is a synchronous in-memory implementation of
// shared.EventPublisher. Handlers run inline on the publisher's goroutine in
// subscription order; a handler error is logged and does not stop the
// remaining handlers. Suitable for single-instance deployments.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	logger      *slog.Logger
	closed      bool
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(logger *slog.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryEventBus{
		handlers:    make(map[shared.EventType][]shared.EventHandler),
		allHandlers: make([]shared.EventHandler, 0),
		logger:      logger,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	return nil
}

// Publish sends an event to all subscribed handlers.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(event); err != nil {
			b.logger.Error("event handler failed",
				"event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

// Close stops the bus; further publishes and subscribes fail.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
