package jobs

import (
	"context"

	"github.com/edupulse/edupulse-insights/internal/application/query"
	"github.com/edupulse/edupulse-insights/pkg/logger"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE WARMUP JOB
// Recomputes the hot dashboard aggregates ahead of demand so the first
// dashboard hit after an invalidation does not pay the full replay cost.
// ══════════════════════════════════════════════════════════════════════════════

// CacheWarmupJob pre-populates the dashboard cache.
type CacheWarmupJob struct {
	metrics *query.GetDashboardMetricsHandler
	health  *query.GetSystemHealthHandler
	logger  *logger.Logger
}

// NewCacheWarmupJob creates a new CacheWarmupJob.
func NewCacheWarmupJob(
	metrics *query.GetDashboardMetricsHandler,
	health *query.GetSystemHealthHandler,
	lg *logger.Logger,
) *CacheWarmupJob {
	return &CacheWarmupJob{metrics: metrics, health: health, logger: lg}
}

// Name returns the job name.
func (j *CacheWarmupJob) Name() string { return "cache_warmup" }

// Description returns the job description.
func (j *CacheWarmupJob) Description() string {
	return "pre-computes dashboard aggregates for the common windows"
}

// Run executes one warmup pass. Individual failures are logged, the pass
// continues; a cold cache is a latency problem, not a correctness one.
func (j *CacheWarmupJob) Run(ctx context.Context) error {
	for _, period := range []timeutil.Period{timeutil.PeriodDay, timeutil.PeriodWeek} {
		if _, err := j.metrics.Handle(ctx, query.GetDashboardMetricsQuery{Period: string(period)}); err != nil {
			j.logger.Warn("metrics warmup failed",
				logger.Period(string(period)), logger.Err(err))
		}
	}
	if _, err := j.health.Handle(ctx, query.GetSystemHealthQuery{}); err != nil {
		j.logger.Warn("health warmup failed", logger.Err(err))
	}
	return nil
}
