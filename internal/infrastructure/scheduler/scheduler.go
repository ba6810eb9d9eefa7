// Package scheduler implements background job scheduling for the telemetry
// core: retention sweeps and cache warmups run here, off the request path.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler is
	// stopping.
	Run(ctx context.Context) error

	// Description returns a human-readable description of the job.
	Description() string
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	Next(t time.Time) time.Time

	// String returns a human-readable representation of the schedule.
	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
}

var (
	ErrNilJob                  = errors.New("scheduler: nil job")
	ErrNilSchedule             = errors.New("scheduler: nil schedule")
	ErrJobAlreadyExists        = errors.New("scheduler: job already registered")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
	ErrSchedulerNotRunning     = errors.New("scheduler: not running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Scheduler manages and executes scheduled jobs.
type Scheduler struct {
	mu sync.RWMutex

	logger *slog.Logger

	jobs      map[string]*scheduledJob
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time

	lastRuns map[string]JobResult
}

// scheduledJob wraps a Job with scheduling information.
type scheduledJob struct {
	job      Job
	schedule Schedule
	nextRun  time.Time
	runCount int64
}

// New creates a Scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:   logger,
		jobs:     make(map[string]*scheduledJob),
		lastRuns: make(map[string]JobResult),
	}
}

// Register adds a job to the scheduler with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	s.jobs[name] = &scheduledJob{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(time.Now().UTC()),
	}

	s.logger.Info("job registered",
		"job", name,
		"description", job.Description(),
		"schedule", schedule.String(),
	)
	return nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", len(s.jobs))

	s.wg.Add(1)
	go s.runLoop()
	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// LastRun returns the most recent result for a job.
func (s *Scheduler) LastRun(jobName string) (JobResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.lastRuns[jobName]
	return r, ok
}

func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.checkAndRunJobs()
		}
	}
}

func (s *Scheduler) checkAndRunJobs() {
	now := time.Now().UTC()

	s.mu.Lock()
	var due []*scheduledJob
	for _, sj := range s.jobs {
		if !sj.nextRun.IsZero() && now.After(sj.nextRun) {
			sj.nextRun = sj.schedule.Next(now)
			sj.runCount++
			due = append(due, sj)
		}
	}
	s.mu.Unlock()

	for _, sj := range due {
		s.wg.Add(1)
		go s.runJob(sj)
	}
}

func (s *Scheduler) runJob(sj *scheduledJob) {
	defer s.wg.Done()

	result := JobResult{
		JobName:   sj.job.Name(),
		StartedAt: time.Now().UTC(),
	}

	err := sj.job.Run(s.ctx)
	result.CompletedAt = time.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)
	result.Success = err == nil
	result.Error = err

	s.mu.Lock()
	s.lastRuns[result.JobName] = result
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			"job", result.JobName,
			"duration", result.Duration.String(),
			"error", err,
		)
		return
	}
	s.logger.Info("job completed",
		"job", result.JobName,
		"duration", result.Duration.String(),
	)
}
