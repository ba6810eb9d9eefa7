package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/insight"
	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/shared"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/pkg/anonymize"
	"github.com/edupulse/edupulse-insights/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT INSIGHTS QUERY
// Per-student deep dive: the full event history is replayed into a progress
// snapshot, the insight engine derives strengths, weaknesses and the adaptive
// signal, and the mapper turns the signal into a concrete study plan.
//
// Callers may pass either a raw student identifier or an already-anonymized
// hash; raw identifiers are hashed before touching the log.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentInsightsQuery identifies the student.
type GetStudentInsightsQuery struct {
	// StudentID is the raw or hashed student identifier.
	StudentID string

	// Role is the coarse audience marker used for cache partitioning.
	Role string
}

// Validate checks the query.
func (q *GetStudentInsightsQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("get_student_insights: student_id is required")
	}
	if q.Role == "" {
		q.Role = "any"
	}
	return nil
}

// StudentInsights is the cached per-student DTO.
type StudentInsights struct {
	StudentHash string    `json:"student_hash"`
	GeneratedAt time.Time `json:"generated_at"`

	// Progress is the replayed per-topic state.
	Progress *progress.StudentProgress `json:"progress"`

	// Insight is the derived analytical view.
	Insight *insight.Insight `json:"insight"`

	// Recommendation is the adaptive recommendation for the suggested topic.
	Recommendation *insight.Recommendation `json:"recommendation,omitempty"`

	// TeachingPlan orders every topic by intervention priority.
	TeachingPlan []insight.TopicPlan `json:"teaching_plan,omitempty"`

	// NextStep is the single most useful next action.
	NextStep *insight.NextStep `json:"next_step,omitempty"`
}

// GetStudentInsightsHandler handles the GetStudentInsightsQuery.
type GetStudentInsightsHandler struct {
	log        telemetry.Log
	replayer   progress.Replayer
	insights   *insight.Engine
	mapper     *insight.Mapper
	anonymizer *anonymize.Anonymizer
	cache      cache.Cache
	logger     *logger.Logger
	now        func() time.Time
}

// NewGetStudentInsightsHandler creates a new GetStudentInsightsHandler.
func NewGetStudentInsightsHandler(
	log telemetry.Log,
	replayer progress.Replayer,
	insights *insight.Engine,
	mapper *insight.Mapper,
	anonymizer *anonymize.Anonymizer,
	c cache.Cache,
	lg *logger.Logger,
) *GetStudentInsightsHandler {
	return &GetStudentInsightsHandler{
		log:        log,
		replayer:   replayer,
		insights:   insights,
		mapper:     mapper,
		anonymizer: anonymizer,
		cache:      c,
		logger:     lg,
		now:        time.Now,
	}
}

// Handle executes the student insights query. Returns shared.ErrNoProgress
// when the student has no interaction history to analyze.
func (h *GetStudentInsightsHandler) Handle(ctx context.Context, q GetStudentInsightsQuery) (*StudentInsights, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	hash := q.StudentID
	if !anonymize.IsHash(hash) {
		hash = h.anonymizer.Hash(hash)
	}

	key := fmt.Sprintf("%sinsights:%s:%s", cache.DashboardPrefix, hash, q.Role)
	var cached StudentInsights
	if err := h.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	history := h.log.ByActor(hash)
	sp := h.replayer.Replay(hash, history)
	ins := h.insights.Derive(sp)
	if ins == nil {
		return nil, fmt.Errorf("get_student_insights: %w", shared.ErrNoProgress)
	}

	result := &StudentInsights{
		StudentHash:  hash,
		GeneratedAt:  h.now().UTC(),
		Progress:     sp,
		Insight:      ins,
		TeachingPlan: h.mapper.TeachingPlan(sp),
		NextStep:     h.mapper.NextStep(sp),
	}
	if ins.SuggestedNextTopic != "" {
		rec := h.mapper.Map(ins.AdaptiveSignal, ins.SuggestedNextTopic)
		result.Recommendation = &rec
	}

	if err := h.cache.Set(ctx, key, result, cache.TTLInsights); err != nil {
		h.logger.Warn("insights cache write failed",
			logger.CacheKey(key), logger.Err(err))
	}
	return result, nil
}
