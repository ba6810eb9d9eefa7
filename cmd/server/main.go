// Package main is the entry point for the telemetry API server: event
// ingestion plus the dashboard read side, backed by the append-only log.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/edupulse/edupulse-insights/config"
	"github.com/edupulse/edupulse-insights/internal/application/command"
	"github.com/edupulse/edupulse-insights/internal/application/eventhandler"
	"github.com/edupulse/edupulse-insights/internal/application/query"
	"github.com/edupulse/edupulse-insights/internal/domain/insight"
	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/export"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/messaging"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/eventlog"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/scheduler"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/edupulse/edupulse-insights/internal/interface/http"
	"github.com/edupulse/edupulse-insights/pkg/anonymize"
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

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Logging
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level: logger.ParseLevel(cfg.App.LogLevel),
	}).With(logger.String("service", cfg.App.Name))
	log.Info("starting telemetry API server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
	)

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Event log (the only durable truth)
	// ─────────────────────────────────────────────────────────────────────────
	store, err := eventlog.Open(eventlog.Config{
		Dir:           cfg.Storage.Dir,
		RetentionDays: cfg.Storage.RetentionDays,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer func() {
		log.Info("closing event log")
		_ = store.Close()
	}()
	log.Info("event log loaded", logger.EventCount(store.Size()))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Cache backend
	// ─────────────────────────────────────────────────────────────────────────
	dashCache, err := buildCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer dashCache.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Internal bus, exporter, domain engines
	// ─────────────────────────────────────────────────────────────────────────
	bus := messaging.NewInMemoryEventBus(slogger)
	defer bus.Close()

	var exporter export.Exporter = export.NopExporter{}
	if cfg.Export.URL != "" {
		exporter = export.NewHTTPExporter(cfg.Export.URL, cfg.Export.AuthToken)
		log.Info("external export enabled", logger.String("url", cfg.Export.URL))
	}

	anonymizer := anonymize.New(cfg.Privacy.Salt)
	replayer := progress.NewEngine()
	insights := insight.NewEngine()
	mapper := insight.NewMapper()

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	recordHandler := command.NewRecordEventHandler(store, anonymizer, bus, log)
	onRecorded := eventhandler.NewOnEventRecordedHandler(dashCache, exporter, log)
	onPurged := eventhandler.NewOnEventsPurgedHandler(dashCache, log)
	_ = bus.Subscribe(shared.EventTelemetryRecorded, onRecorded.Handle)
	_ = bus.Subscribe(shared.EventTelemetryPurged, onPurged.Handle)

	deps := httpserver.Dependencies{
		RecordEventHandler:         recordHandler,
		ListEventsHandler:          query.NewListEventsHandler(store),
		GetDashboardMetricsHandler: query.NewGetDashboardMetricsHandler(store, replayer, dashCache, log),
		GetSystemHealthHandler:     query.NewGetSystemHealthHandler(store, dashCache, log),
		GetComplianceHandler:       query.NewGetComplianceHandler(store, dashCache, log),
		GetTopicRollupHandler:      query.NewGetTopicRollupHandler(store, replayer, dashCache, log),
		GetStudentInsightsHandler:  query.NewGetStudentInsightsHandler(store, replayer, insights, mapper, anonymizer, dashCache, log),
		Log:                        store,
		Cache:                      dashCache,
		Logger:                     log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. In-process scheduler
	// The store's directory lock admits exactly one process, so the retention
	// sweep runs here, next to the ingest path.
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(slogger)

		sweep := jobs.NewRetentionSweepJob(store, store, bus, log)
		if err := sched.Register(sweep, scheduler.NewIntervalSchedule(cfg.Scheduler.RetentionSweepInterval)); err != nil {
			return fmt.Errorf("failed to register retention sweep: %w", err)
		}

		if cfg.Scheduler.CacheWarmupInterval > 0 {
			warmup := jobs.NewCacheWarmupJob(
				deps.GetDashboardMetricsHandler,
				deps.GetSystemHealthHandler,
				log,
			)
			if err := sched.Register(warmup, scheduler.NewIntervalSchedule(cfg.Scheduler.CacheWarmupInterval)); err != nil {
				return fmt.Errorf("failed to register cache warmup: %w", err)
			}
		}

		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP server with graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	serverCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpserver.NewServer(serverCfg, deps)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})

	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("shutdown signal received", logger.String("signal", sig.String()))
		case <-gctx.Done():
		}

		if sched != nil {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", logger.Err(err))
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}

	log.Info("telemetry API server stopped")
	return nil
}

// buildCache constructs the configured cache backend. Memory is the default;
// redis is for deployments that share dashboards across replicas.
func buildCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (cache.Cache, error) {
	if cfg.Cache.Backend == config.CacheBackendRedis {
		redisCache, err := cache.NewRedisCache(cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		if err := redisCache.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		log.Info("redis cache connected", logger.String("addr", cfg.Redis.Addr()))
		return redisCache, nil
	}

	log.Info("using in-memory dashboard cache")
	return cache.NewMemoryCache(), nil
}
