// Package eventhandler contains handlers for internal bus events.
package eventhandler

import (
	"context"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/export"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON EVENT RECORDED HANDLER
// Fires after every successful log write. Two duties:
//  1. Invalidate every dashboard aggregate, so readers never see a rollup
//     older than the latest write plus its TTL.
//  2. Mirror the event to the external exporter, fire-and-forget.
// ══════════════════════════════════════════════════════════════════════════════

// OnEventRecordedHandler reacts to telemetry.recorded bus events.
type OnEventRecordedHandler struct {
	cache    cache.Cache
	exporter export.Exporter
	logger   *logger.Logger
}

// NewOnEventRecordedHandler creates a new OnEventRecordedHandler.
func NewOnEventRecordedHandler(c cache.Cache, exp export.Exporter, lg *logger.Logger) *OnEventRecordedHandler {
	return &OnEventRecordedHandler{cache: c, exporter: exp, logger: lg}
}

// Handle invalidates the dashboard cache namespace and mirrors the event.
// Invalidation failure is logged and swallowed: a stale aggregate expires by
// TTL on its own, it must never fail the write path that triggered us.
func (h *OnEventRecordedHandler) Handle(ev shared.Event) error {
	if err := h.cache.DeleteByPrefix(context.Background(), cache.DashboardPrefix); err != nil {
		h.logger.Warn("dashboard cache invalidation failed", logger.Err(err))
	}

	if h.exporter != nil {
		export.EmitAsync(h.exporter, h.logger, ev)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ON EVENTS PURGED HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// OnEventsPurgedHandler reacts to telemetry.purged bus events. A purge rewrites
// history, so every replay-derived aggregate is stale.
type OnEventsPurgedHandler struct {
	cache  cache.Cache
	logger *logger.Logger
}

// NewOnEventsPurgedHandler creates a new OnEventsPurgedHandler.
func NewOnEventsPurgedHandler(c cache.Cache, lg *logger.Logger) *OnEventsPurgedHandler {
	return &OnEventsPurgedHandler{cache: c, logger: lg}
}

// Handle invalidates the dashboard cache namespace.
func (h *OnEventsPurgedHandler) Handle(ev shared.Event) error {
	if err := h.cache.DeleteByPrefix(context.Background(), cache.DashboardPrefix); err != nil {
		h.logger.Warn("dashboard cache invalidation after purge failed", logger.Err(err))
	}
	return nil
}
