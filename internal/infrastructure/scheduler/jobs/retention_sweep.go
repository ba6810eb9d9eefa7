// Package jobs contains the scheduled background jobs.
package jobs

import (
	"context"
	"fmt"

	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RETENTION SWEEP JOB
// Drops events older than the retention window and compacts the durable log.
// A sweep that removed anything announces itself on the bus so the dashboard
// caches flush; replay-derived numbers change when history shrinks.
// ══════════════════════════════════════════════════════════════════════════════

// Sizer reports the live event count. The event log store implements it.
type Sizer interface {
	Size() int
}

// RetentionSweepJob purges expired events from the log.
type RetentionSweepJob struct {
	log       telemetry.Log
	sizer     Sizer
	publisher shared.EventPublisher
	logger    *logger.Logger
}

// NewRetentionSweepJob creates a new RetentionSweepJob.
func NewRetentionSweepJob(log telemetry.Log, sizer Sizer, publisher shared.EventPublisher, lg *logger.Logger) *RetentionSweepJob {
	return &RetentionSweepJob{log: log, sizer: sizer, publisher: publisher, logger: lg}
}

// Name returns the job name.
func (j *RetentionSweepJob) Name() string { return "retention_sweep" }

// Description returns the job description.
func (j *RetentionSweepJob) Description() string {
	return "purges events past the retention window and compacts the log"
}

// Run executes one sweep.
func (j *RetentionSweepJob) Run(ctx context.Context) error {
	removed, err := j.log.PurgeOld(ctx)
	if err != nil {
		return fmt.Errorf("retention sweep: %w", err)
	}
	if removed == 0 {
		return nil
	}

	retained := 0
	if j.sizer != nil {
		retained = j.sizer.Size()
	}

	j.logger.Info("retention sweep removed expired events",
		logger.Int("removed", removed),
		logger.Int("retained", retained))

	if j.publisher != nil {
		_ = j.publisher.Publish(shared.NewTelemetryPurgedEvent(removed, retained))
	}
	return nil
}
