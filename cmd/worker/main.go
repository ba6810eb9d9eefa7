// Package main is the entry point for the standalone maintenance worker:
// retention sweeps and cache warmups over a storage directory no server is
// using. The API server runs the same jobs in-process; the event log admits
// one process per directory, so this binary is for offline maintenance, not
// a sidecar.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/edupulse/edupulse-insights/config"
	"github.com/edupulse/edupulse-insights/internal/application/eventhandler"
	"github.com/edupulse/edupulse-insights/internal/application/query"
	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/messaging"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/eventlog"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/scheduler"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/scheduler/jobs"
	"github.com/edupulse/edupulse-insights/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration
	// ─────────────────────────────────────────────────────────────────────────
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Scheduler.Enabled {
		return fmt.Errorf("scheduler is disabled, nothing to run")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Logging
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level: logger.ParseLevel(cfg.App.LogLevel),
	}).With(logger.String("service", cfg.App.Name+"-worker"))
	log.Info("starting telemetry worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.Duration("retention_interval", cfg.Scheduler.RetentionSweepInterval),
	)

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Event log and cache
	// ─────────────────────────────────────────────────────────────────────────
	store, err := eventlog.Open(eventlog.Config{
		Dir:           cfg.Storage.Dir,
		RetentionDays: cfg.Storage.RetentionDays,
		Logger:        log,
	})
	if err != nil {
		if errors.Is(err, eventlog.ErrStoreLocked) {
			return fmt.Errorf("storage dir is held by a running server, which sweeps it itself: %w", err)
		}
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer store.Close()

	dashCache := cache.NewMemoryCache()
	defer dashCache.Close()

	bus := messaging.NewInMemoryEventBus(slogger)
	defer bus.Close()

	onPurged := eventhandler.NewOnEventsPurgedHandler(dashCache, log)
	_ = bus.Subscribe(shared.EventTelemetryPurged, onPurged.Handle)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Scheduler and jobs
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(slogger)

	sweep := jobs.NewRetentionSweepJob(store, store, bus, log)
	if err := sched.Register(sweep, scheduler.NewIntervalSchedule(cfg.Scheduler.RetentionSweepInterval)); err != nil {
		return fmt.Errorf("failed to register retention sweep: %w", err)
	}

	if cfg.Scheduler.CacheWarmupInterval > 0 {
		replayer := progress.NewEngine()
		warmup := jobs.NewCacheWarmupJob(
			query.NewGetDashboardMetricsHandler(store, replayer, dashCache, log),
			query.NewGetSystemHealthHandler(store, dashCache, log),
			log,
		)
		if err := sched.Register(warmup, scheduler.NewIntervalSchedule(cfg.Scheduler.CacheWarmupInterval)); err != nil {
			return fmt.Errorf("failed to register cache warmup: %w", err)
		}
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Wait for shutdown
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", logger.Err(err))
	}

	log.Info("telemetry worker stopped")
	return nil
}
