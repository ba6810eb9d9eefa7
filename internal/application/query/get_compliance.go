package query

import (
	"context"
	"fmt"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
	"github.com/edupulse/edupulse-insights/internal/infrastructure/persistence/cache"
	"github.com/edupulse/edupulse-insights/pkg/logger"
	"github.com/edupulse/edupulse-insights/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET COMPLIANCE QUERY
// Academic-integrity rollup for one window: incident counts per ethics
// category plus privacy alerts, folded into a single 0-100 compliance score.
// Category counts are taken as reported; this layer never re-classifies.
// ══════════════════════════════════════════════════════════════════════════════

// GetComplianceQuery contains the window selector.
type GetComplianceQuery struct {
	Period string
	Role   string
}

// Validate normalizes the query, defaulting to a weekly window.
func (q *GetComplianceQuery) Validate() error {
	if q.Period == "" {
		q.Period = string(timeutil.PeriodWeek)
	}
	if !timeutil.Period(q.Period).Valid() {
		return fmt.Errorf("get_compliance: unknown period %q", q.Period)
	}
	if q.Role == "" {
		q.Role = "any"
	}
	return nil
}

// ComplianceReport is the cached compliance DTO.
type ComplianceReport struct {
	Period      string    `json:"period"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	GeneratedAt time.Time `json:"generated_at"`

	// CheatingDetected counts cheating_detected ethics events.
	CheatingDetected int `json:"cheating_detected"`

	// AssignmentEnforcements counts assignment_enforced ethics events.
	AssignmentEnforcements int `json:"assignment_enforcements"`

	// PromptModifications counts prompt_modified ethics events.
	PromptModifications int `json:"prompt_modifications"`

	// PrivacyAlerts counts privacy events.
	PrivacyAlerts int `json:"privacy_alerts"`

	// Interactions is the window's interaction volume the score is rated
	// against.
	Interactions int `json:"interactions"`

	// Score is the 0-100 compliance score.
	Score int `json:"score"`
}

// GetComplianceHandler handles the GetComplianceQuery.
type GetComplianceHandler struct {
	log    telemetry.Log
	cache  cache.Cache
	logger *logger.Logger
	now    func() time.Time
}

// NewGetComplianceHandler creates a new GetComplianceHandler.
func NewGetComplianceHandler(log telemetry.Log, c cache.Cache, lg *logger.Logger) *GetComplianceHandler {
	return &GetComplianceHandler{log: log, cache: c, logger: lg, now: time.Now}
}

// Handle executes the compliance query.
func (h *GetComplianceHandler) Handle(ctx context.Context, q GetComplianceQuery) (*ComplianceReport, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	key := cache.Key("compliance", q.Period, q.Role)
	var cached ComplianceReport
	if err := h.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	window := timeutil.WindowEndingNow(timeutil.ParsePeriod(q.Period), h.now().UTC())
	report := &ComplianceReport{
		Period:      q.Period,
		From:        window.From,
		To:          window.To,
		GeneratedAt: h.now().UTC(),
	}

	for _, ev := range h.log.Query(window, telemetry.KindEthics) {
		switch ev.Ethics.Category {
		case telemetry.EthicsCheatingDetected:
			report.CheatingDetected++
		case telemetry.EthicsAssignmentEnforced:
			report.AssignmentEnforcements++
		case telemetry.EthicsPromptModified:
			report.PromptModifications++
		}
	}
	report.PrivacyAlerts = len(h.log.Query(window, telemetry.KindPrivacy))
	report.Interactions = len(h.log.Query(window, telemetry.KindInteraction))

	report.Score = ComplianceScore(
		report.CheatingDetected,
		report.PrivacyAlerts,
		report.AssignmentEnforcements,
		report.PromptModifications,
		report.Interactions,
	)

	if err := h.cache.Set(ctx, key, report, cache.TTLCompliance); err != nil {
		h.logger.Warn("compliance cache write failed",
			logger.CacheKey(key), logger.Err(err))
	}
	return report, nil
}
