package query

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/pkg/logger"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DASHBOARD METRICS QUERY
// The main dashboard rollup for one time window: activity volume, mastery
// levels per topic, depth distribution and a quality snapshot compared to the
// previous window. Served read-through from the dashboard cache; cache
// failures degrade to a recompute, never to an error.
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardMetricsQuery contains the window selector.
type GetDashboardMetricsQuery struct {
	// Period selects the window length: day, week or month.
	Period string

	// Role is the coarse audience marker used for cache partitioning.
	Role string
}

// Validate normalizes the query, defaulting to a weekly window.
func (q *GetDashboardMetricsQuery) Validate() error {
	if q.Period == "" {
		q.Period = string(timeutil.PeriodWeek)
	}
	if !timeutil.Period(q.Period).Valid() {
		return fmt.Errorf("get_dashboard_metrics: unknown period %q", q.Period)
	}
	if q.Role == "" {
		q.Role = "any"
	}
	return nil
}

// TopicBreakdown is the per-topic slice of the dashboard.
type TopicBreakdown struct {
	// AverageMastery is the mean mastery across students active on the topic.
	AverageMastery float64 `json:"average_mastery"`

	// Students is the count of distinct students who touched the topic.
	Students int `json:"students"`

	// Interactions counts the topic's interactions inside the window.
	Interactions int `json:"interactions"`

	// SuccessRate is the share of successful interactions in the window.
	SuccessRate float64 `json:"success_rate"`
}

// QualitySnapshot summarizes tutoring quality for the window.
type QualitySnapshot struct {
	// ReasoningAverage is the mean grader score over the window.
	ReasoningAverage float64 `json:"reasoning_average"`

	// ConceptCoverage is the mean assignment concept coverage.
	ConceptCoverage float64 `json:"concept_coverage"`

	// Trend compares ReasoningAverage with the previous window.
	Trend string `json:"trend"`
}

// DashboardMetrics is the cached dashboard DTO.
type DashboardMetrics struct {
	Period            string                    `json:"period"`
	From              time.Time                 `json:"from"`
	To                time.Time                 `json:"to"`
	GeneratedAt       time.Time                 `json:"generated_at"`
	DistinctStudents  int                       `json:"distinct_students"`
	TotalInteractions int                       `json:"total_interactions"`
	TotalEvents       int                       `json:"total_events"`
	AverageMastery    float64                   `json:"average_mastery"`
	Topics            map[string]TopicBreakdown `json:"topics"`
	DepthDistribution map[string]float64        `json:"depth_distribution"`
	Quality           QualitySnapshot           `json:"quality"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetDashboardMetricsHandler handles the GetDashboardMetricsQuery.
type GetDashboardMetricsHandler struct {
	log      telemetry.Log
	replayer progress.Replayer
	cache    cache.Cache
	logger   *logger.Logger
	now      func() time.Time
}

// NewGetDashboardMetricsHandler creates a new GetDashboardMetricsHandler.
func NewGetDashboardMetricsHandler(
	log telemetry.Log,
	replayer progress.Replayer,
	c cache.Cache,
	lg *logger.Logger,
) *GetDashboardMetricsHandler {
	return &GetDashboardMetricsHandler{
		log:      log,
		replayer: replayer,
		cache:    c,
		logger:   lg,
		now:      time.Now,
	}
}

// Handle executes the dashboard metrics query.
func (h *GetDashboardMetricsHandler) Handle(ctx context.Context, q GetDashboardMetricsQuery) (*DashboardMetrics, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := cache.Key("metrics", q.Period, q.Role)
	var cached DashboardMetrics
	if err := h.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	window := timeutil.WindowEndingNow(timeutil.ParsePeriod(q.Period), h.now().UTC())
	metrics := h.compute(window, q.Period)

	if err := h.cache.Set(ctx, key, metrics, cache.TTLMetrics); err != nil {
		h.logger.Warn("dashboard cache write failed",
			logger.CacheKey(key), logger.Err(err))
	}
	return metrics, nil
}

func (h *GetDashboardMetricsHandler) compute(window timeutil.Range, period string) *DashboardMetrics {
	events := h.log.Query(window)
	interactions := filterKind(events, telemetry.KindInteraction)

	students := make(map[string]struct{})
	for _, ev := range interactions {
		if hash := ev.StudentHash(); hash != "" {
			students[hash] = struct{}{}
		}
	}

	metrics := &DashboardMetrics{
		Period:            period,
		From:              window.From,
		To:                window.To,
		GeneratedAt:       h.now().UTC(),
		DistinctStudents:  len(students),
		TotalInteractions: len(interactions),
		TotalEvents:       len(events),
		Topics:            h.topicBreakdown(interactions, students),
		DepthDistribution: depthDistribution(interactions),
	}

	sum := 0.0
	for _, tb := range metrics.Topics {
		sum += tb.AverageMastery
	}
	if len(metrics.Topics) > 0 {
		metrics.AverageMastery = round2(sum / float64(len(metrics.Topics)))
	}

	metrics.Quality = h.qualitySnapshot(window, events)
	return metrics
}

// topicBreakdown replays each active student's full history and folds the
// resulting mastery levels into per-topic averages. Mastery is a property of
// the whole log; only the activity counts are window-scoped.
func (h *GetDashboardMetricsHandler) topicBreakdown(interactions []telemetry.Event, students map[string]struct{}) map[string]TopicBreakdown {
	type topicAcc struct {
		masterySum   int
		students     int
		interactions int
		successes    int
	}
	acc := make(map[string]*topicAcc)

	for hash := range students {
		sp := h.replayer.Replay(hash, h.log.ByActor(hash))
		if sp == nil {
			continue
		}
		for _, name := range sp.TopicNames() {
			a := acc[name]
			if a == nil {
				a = &topicAcc{}
				acc[name] = a
			}
			a.masterySum += sp.Topics[name].MasteryLevel
			a.students++
		}
	}

	for _, ev := range interactions {
		topic := ev.Topic()
		if topic == "" {
			continue
		}
		a := acc[topic]
		if a == nil {
			a = &topicAcc{}
			acc[topic] = a
		}
		a.interactions++
		if ev.Interaction.Success {
			a.successes++
		}
	}

	out := make(map[string]TopicBreakdown, len(acc))
	for name, a := range acc {
		tb := TopicBreakdown{
			Students:     a.students,
			Interactions: a.interactions,
		}
		if a.students > 0 {
			tb.AverageMastery = round2(float64(a.masterySum) / float64(a.students))
		}
		if a.interactions > 0 {
			tb.SuccessRate = round2(float64(a.successes) / float64(a.interactions))
		}
		out[name] = tb
	}
	return out
}

func (h *GetDashboardMetricsHandler) qualitySnapshot(window timeutil.Range, events []telemetry.Event) QualitySnapshot {
	snap := QualitySnapshot{
		ReasoningAverage: meanReasoning(events),
		ConceptCoverage:  meanCoverage(events),
	}

	previous := h.log.Query(timeutil.PreviousWindow(window))
	snap.Trend = QualityTrendLabel(snap.ReasoningAverage, meanReasoning(previous))
	return snap
}

// depthDistribution returns the interaction share per depth tier. Shares are
// exact quotients, never rounded here, so they sum to 1 for a non-empty
// window.
func depthDistribution(interactions []telemetry.Event) map[string]float64 {
	counts := make(map[string]int)
	for _, ev := range interactions {
		counts[string(ev.Interaction.Depth)]++
	}

	out := make(map[string]float64, len(counts))
	total := len(interactions)
	if total == 0 {
		return out
	}
	for depth, n := range counts {
		out[depth] = float64(n) / float64(total)
	}
	return out
}

func filterKind(events []telemetry.Event, kind telemetry.Kind) []telemetry.Event {
	var out []telemetry.Event
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func meanReasoning(events []telemetry.Event) float64 {
	sum, n := 0.0, 0
	for _, ev := range events {
		if ev.Kind == telemetry.KindInteraction && ev.Interaction != nil {
			sum += ev.Interaction.ReasoningQuality
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

func meanCoverage(events []telemetry.Event) float64 {
	sum, n := 0.0, 0
	for _, ev := range events {
		if ev.Kind == telemetry.KindAssignment && ev.Assignment != nil {
			sum += ev.Assignment.ConceptCoverage
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
