package insight

import (
	"fmt"
	"math"
	"sort"

	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
)

// DepthSuggestion is the recommended next depth tier for a topic.
type DepthSuggestion string

const (
	SuggestCore     DepthSuggestion = "Core"
	SuggestApplied  DepthSuggestion = "Applied"
	SuggestMastery  DepthSuggestion = "Mastery"
	SuggestMaintain DepthSuggestion = "MAINTAIN"
)

// PracticeIntensity is the recommended practice load for a topic.
type PracticeIntensity string

const (
	HeavyPractice  PracticeIntensity = "HEAVY_PRACTICE"
	LightPractice  PracticeIntensity = "LIGHT_PRACTICE"
	ReadyToAdvance PracticeIntensity = "READY_TO_ADVANCE"
)

// Priority ranks topics within a teaching plan.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Depth-progression gates: mastery required to move off each tier, always
// combined with an improving confidence trend.
const (
	gateCoreToApplied    = 70
	gateAppliedToMastery = 85
	gateMasteryCeiling   = 90
)

// Time-to-mastery estimation constants. Each attempt is assumed to move
// mastery by ~10 points and take a fixed average duration.
const (
	masteryPointsPerAttempt = 10
	avgSecondsPerAttempt    = 90
)

// Recommendation is the fixed record a signal maps to.
type Recommendation struct {
	Signal         Signal          `json:"signal"`
	Confidence     float64         `json:"confidence"`
	Reason         string          `json:"reason"`
	SuggestedDepth DepthSuggestion `json:"suggested_depth,omitempty"`
}

// TopicPlan is one entry of a teaching plan.
type TopicPlan struct {
	Topic      string            `json:"topic"`
	Priority   Priority          `json:"priority"`
	Depth      DepthSuggestion   `json:"depth"`
	Intensity  PracticeIntensity `json:"intensity"`
	FocusAreas []string          `json:"focus_areas,omitempty"`
}

// NextStep is the single most actionable topic for a student, with a rough
// time-to-mastery estimate.
type NextStep struct {
	Topic            string            `json:"topic"`
	Intensity        PracticeIntensity `json:"intensity"`
	Depth            DepthSuggestion   `json:"depth"`
	EstimatedMinutes int               `json:"estimated_minutes"`
}

// Mapper translates discrete signals and topic state into concrete teaching
// recommendations via direct one-to-one dispatch.
type Mapper struct{}

// NewMapper creates a Mapper.
func NewMapper() *Mapper { return &Mapper{} }

// Map returns the fixed recommendation record for a signal. The topic is
// interpolated into the reason template; it may be empty.
func (m *Mapper) Map(signal Signal, topic string) Recommendation {
	if topic == "" {
		topic = "the current topic"
	}
	switch signal {
	case SignalIncreaseDepth:
		return Recommendation{
			Signal:         SignalIncreaseDepth,
			Confidence:     0.9,
			Reason:         fmt.Sprintf("Consistently high mastery with improving confidence; raise the difficulty of %s.", topic),
			SuggestedDepth: SuggestMastery,
		}
	case SignalReduceComplexity:
		return Recommendation{
			Signal:         SignalReduceComplexity,
			Confidence:     0.85,
			Reason:         fmt.Sprintf("Mastery is low or declining; simplify %s until results stabilize.", topic),
			SuggestedDepth: SuggestCore,
		}
	case SignalPracticeMore:
		return Recommendation{
			Signal:     SignalPracticeMore,
			Confidence: 0.8,
			Reason:     fmt.Sprintf("Repeated errors with few attempts; add practice volume on %s.", topic),
		}
	case SignalReadyForMastery:
		return Recommendation{
			Signal:         SignalReadyForMastery,
			Confidence:     0.75,
			Reason:         fmt.Sprintf("Core depth is saturated; %s is ready for mastery-level work.", topic),
			SuggestedDepth: SuggestMastery,
		}
	default:
		return Recommendation{
			Signal:     SignalMaintainLevel,
			Confidence: 0.7,
			Reason:     fmt.Sprintf("Progress on %s is on track; keep the current level.", topic),
		}
	}
}

// SuggestDepth recommends the next depth tier for a topic. Advancement
// requires clearing the mastery gate for the current tier and an improving
// confidence trend; otherwise the student stays where they are.
func (m *Mapper) SuggestDepth(tp *progress.TopicProgress) DepthSuggestion {
	improving := tp.ConfidenceTrend == progress.TrendImproving
	switch tp.DepthProgress {
	case telemetry.DepthCore:
		if tp.MasteryLevel >= gateCoreToApplied && improving {
			return SuggestApplied
		}
	case telemetry.DepthApplied:
		if tp.MasteryLevel >= gateAppliedToMastery && improving {
			return SuggestMastery
		}
	case telemetry.DepthMastery:
		if tp.MasteryLevel >= gateMasteryCeiling {
			return SuggestMaintain
		}
	}
	return SuggestMaintain
}

// SuggestIntensity recommends a practice load for a topic.
func (m *Mapper) SuggestIntensity(tp *progress.TopicProgress) PracticeIntensity {
	errs := tp.TotalErrors()
	if tp.MasteryLevel < 40 || tp.ConfidenceTrend == progress.TrendDeclining || errs > 5 {
		return HeavyPractice
	}
	if tp.MasteryLevel >= 75 && tp.ConfidenceTrend == progress.TrendImproving && errs < 2 {
		return ReadyToAdvance
	}
	return LightPractice
}

// TeachingPlan aggregates depth and intensity suggestions for every topic
// into a prioritized plan, highest priority first.
func (m *Mapper) TeachingPlan(sp *progress.StudentProgress) []TopicPlan {
	if sp == nil {
		return nil
	}
	plan := make([]TopicPlan, 0, len(sp.Topics))
	for _, name := range sp.TopicNames() {
		tp := sp.Topics[name]
		plan = append(plan, TopicPlan{
			Topic:      name,
			Priority:   priorityOf(tp.MasteryLevel),
			Depth:      m.SuggestDepth(tp),
			Intensity:  m.SuggestIntensity(tp),
			FocusAreas: tp.TopErrorPatterns(3),
		})
	}
	sort.SliceStable(plan, func(i, j int) bool {
		return priorityRank(plan[i].Priority) < priorityRank(plan[j].Priority)
	})
	return plan
}

// NextStep picks the single most urgent topic (lowest mastery with heavy
// practice pending) or, failing that, the most advanceable one, and
// estimates the remaining time to mastery.
func (m *Mapper) NextStep(sp *progress.StudentProgress) *NextStep {
	if sp == nil || len(sp.Topics) == 0 {
		return nil
	}

	pick := ""
	pickLevel := 101
	for _, name := range sp.TopicNames() {
		tp := sp.Topics[name]
		if m.SuggestIntensity(tp) == HeavyPractice && tp.MasteryLevel < pickLevel {
			pick = name
			pickLevel = tp.MasteryLevel
		}
	}
	if pick == "" {
		// Nothing urgent: advance the strongest topic instead.
		pickLevel = -1
		for _, name := range sp.TopicNames() {
			tp := sp.Topics[name]
			if tp.MasteryLevel > pickLevel {
				pick = name
				pickLevel = tp.MasteryLevel
			}
		}
	}

	tp := sp.Topics[pick]
	return &NextStep{
		Topic:            pick,
		Intensity:        m.SuggestIntensity(tp),
		Depth:            m.SuggestDepth(tp),
		EstimatedMinutes: estimateMinutes(tp.MasteryLevel),
	}
}

// estimateMinutes converts remaining mastery distance into minutes:
// ceil((100-mastery)/10) attempts at a fixed average duration each.
func estimateMinutes(mastery int) int {
	if mastery >= 100 {
		return 0
	}
	attempts := math.Ceil(float64(100-mastery) / masteryPointsPerAttempt)
	seconds := attempts * avgSecondsPerAttempt
	return int(math.Ceil(seconds / 60))
}

func priorityOf(mastery int) Priority {
	switch {
	case mastery < 50:
		return PriorityHigh
	case mastery < 75:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}
