package query

import (
	"context"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/pkg/logger"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SYSTEM HEALTH QUERY
// Operational snapshot over the last day: error rate, mean model latency,
// fatal errors and storage writability, folded into a 0-100 health score.
// Cached with the shortest TTL of all dashboard views.
// ══════════════════════════════════════════════════════════════════════════════

// GetSystemHealthQuery contains the audience marker; the window is always the
// trailing day so the score reacts to incidents quickly.
type GetSystemHealthQuery struct {
	Role string
}

// SystemHealth is the cached health DTO.
type SystemHealth struct {
	GeneratedAt time.Time `json:"generated_at"`

	// TotalEvents is the event volume in the trailing day.
	TotalEvents int `json:"total_events"`

	// SystemErrors counts system_error events in the window.
	SystemErrors int `json:"system_errors"`

	// FatalErrors counts fatal system_error events in the window.
	FatalErrors int `json:"fatal_errors"`

	// ErrorRate is SystemErrors over TotalEvents.
	ErrorRate float64 `json:"error_rate"`

	// AvgLatencyMs is the mean model-invocation latency over the window's
	// interactions that reported one.
	AvgLatencyMs float64 `json:"avg_latency_ms"`

	// StorageWritable reports whether the event log accepts appends.
	StorageWritable bool `json:"storage_writable"`

	// Score is the 0-100 health score.
	Score int `json:"score"`
}

// GetSystemHealthHandler handles the GetSystemHealthQuery.
type GetSystemHealthHandler struct {
	log    telemetry.Log
	cache  cache.Cache
	logger *logger.Logger
	now    func() time.Time
}

// NewGetSystemHealthHandler creates a new GetSystemHealthHandler.
func NewGetSystemHealthHandler(log telemetry.Log, c cache.Cache, lg *logger.Logger) *GetSystemHealthHandler {
	return &GetSystemHealthHandler{log: log, cache: c, logger: lg, now: time.Now}
}

// Handle executes the system health query.
func (h *GetSystemHealthHandler) Handle(ctx context.Context, q GetSystemHealthQuery) (*SystemHealth, error) {
	if q.Role == "" {
		q.Role = "any"
	}

	key := cache.Key("health", string(timeutil.PeriodDay), q.Role)
	var cached SystemHealth
	if err := h.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	window := timeutil.WindowEndingNow(timeutil.PeriodDay, h.now().UTC())
	events := h.log.Query(window)

	health := &SystemHealth{
		GeneratedAt:     h.now().UTC(),
		TotalEvents:     len(events),
		StorageWritable: h.log.IsWritable(),
	}

	latencySum, latencySamples := 0, 0
	for _, ev := range events {
		switch ev.Kind {
		case telemetry.KindSystemError:
			health.SystemErrors++
			if ev.SystemError.Fatal {
				health.FatalErrors++
			}
		case telemetry.KindInteraction:
			if ev.Interaction.LatencyMs > 0 {
				latencySum += ev.Interaction.LatencyMs
				latencySamples++
			}
		}
	}

	if health.TotalEvents > 0 {
		health.ErrorRate = round2(float64(health.SystemErrors) / float64(health.TotalEvents))
	}
	if latencySamples > 0 {
		health.AvgLatencyMs = round2(float64(latencySum) / float64(latencySamples))
	}

	health.Score = HealthScore(health.ErrorRate, health.AvgLatencyMs, health.FatalErrors)
	if !health.StorageWritable {
		// A log that cannot persist is an incident regardless of volume.
		health.Score = clampScore(health.Score - 50)
	}

	if err := h.cache.Set(ctx, key, health, cache.TTLHealth); err != nil {
		h.logger.Warn("health cache write failed",
			logger.CacheKey(key), logger.Err(err))
	}
	return health, nil
}
