// Package http implements the REST API for the telemetry core: event
// ingestion, the dashboard aggregates and health probes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/edupulse/edupulse-insights/internal/application/command"
	"github.com/edupulse/edupulse-insights/internal/application/query"
	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of an ingest request body.
	MaxBodyBytes int64

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int

	// RoleHeader - header carrying the coarse caller role.
	RoleHeader string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       15 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       256 << 10,
		RateLimitPerMinute: 300,
		RoleHeader:         "X-Role",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	RecordEventHandler *command.RecordEventHandler

	// Query Handlers (CQRS Read Side)
	ListEventsHandler          *query.ListEventsHandler
	GetDashboardMetricsHandler *query.GetDashboardMetricsHandler
	GetSystemHealthHandler     *query.GetSystemHealthHandler
	GetComplianceHandler       *query.GetComplianceHandler
	GetTopicRollupHandler      *query.GetTopicRollupHandler
	GetStudentInsightsHandler  *query.GetStudentInsightsHandler

	// Liveness dependencies
	Log   telemetry.Log
	Cache cache.Cache

	// Logger
	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *logger.Logger

	rateLimiter *rateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and
// dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}

	if s.logger == nil {
		s.logger = logger.Default()
	}
	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.buildMiddlewareChain(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Health probes
	s.router.HandleFunc("GET /health", s.handleHealthz)
	s.router.HandleFunc("GET /healthz", s.handleHealthz)

	// Ingestion
	s.router.HandleFunc("POST /api/v1/events", s.handleRecordEvent)
	s.router.HandleFunc("GET /api/v1/events", s.handleListEvents)

	// Dashboard aggregates (staff only)
	s.router.HandleFunc("GET /api/v1/dashboard/metrics", s.staffOnly(s.handleDashboardMetrics))
	s.router.HandleFunc("GET /api/v1/dashboard/health", s.staffOnly(s.handleDashboardHealth))
	s.router.HandleFunc("GET /api/v1/dashboard/compliance", s.staffOnly(s.handleDashboardCompliance))
	s.router.HandleFunc("GET /api/v1/dashboard/topics", s.staffOnly(s.handleDashboardTopics))
	s.router.HandleFunc("GET /api/v1/students/{id}/insights", s.staffOnly(s.handleStudentInsights))
}

// buildMiddlewareChain wraps the router with all middleware.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	h := handler
	h = s.requestIDMiddleware(h)
	h = s.loggingMiddleware(h)
	h = s.recoveryMiddleware(h)
	if s.rateLimiter != nil {
		h = s.rateLimitMiddleware(h)
	}
	return h
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]bool{
		"storage": s.deps.Log.IsWritable(),
		"cache":   s.deps.Cache.Ping(ctx) == nil,
	}

	healthy := checks["storage"]
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"healthy": healthy,
		"checks":  checks,
		"uptime":  s.Uptime().String(),
	})
}

func (s *Server) handleRecordEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var cmd command.RecordEventCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "request body must be a JSON event")
		return
	}

	result, err := s.deps.RecordEventHandler.Handle(r.Context(), cmd)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "record_failed", err.Error())
		return
	}

	// A dropped event is still a 202: ingestion never pushes failures back
	// onto the learning loop, only a drop reason in the body.
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := query.ListEventsQuery{
		Period: r.URL.Query().Get("period"),
		From:   r.URL.Query().Get("from"),
		To:     r.URL.Query().Get("to"),
		Limit:  intQuery(r, "limit"),
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		q.Kinds = []string{kind}
	}

	result, err := s.deps.ListEventsHandler.Handle(r.Context(), q)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDashboardMetrics(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetDashboardMetricsHandler.Handle(r.Context(), query.GetDashboardMetricsQuery{
		Period: r.URL.Query().Get("period"),
		Role:   s.role(r),
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDashboardHealth(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetSystemHealthHandler.Handle(r.Context(), query.GetSystemHealthQuery{
		Role: s.role(r),
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "health_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDashboardCompliance(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetComplianceHandler.Handle(r.Context(), query.GetComplianceQuery{
		Period: r.URL.Query().Get("period"),
		Role:   s.role(r),
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDashboardTopics(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetTopicRollupHandler.Handle(r.Context(), query.GetTopicRollupQuery{
		Period: r.URL.Query().Get("period"),
		Role:   s.role(r),
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStudentInsights(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.GetStudentInsightsHandler.Handle(r.Context(), query.GetStudentInsightsQuery{
		StudentID: r.PathValue("id"),
		Role:      s.role(r),
	})
	if err != nil {
		if errors.Is(err, shared.ErrNoProgress) {
			writeJSONError(w, http.StatusNotFound, "no_progress", "student has no interaction history")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_query", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// Address returns the server address.
func (s *Server) Address() string {
	return s.config.Address()
}
