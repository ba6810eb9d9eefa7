// Package progress implements the event-sourced mastery model. A student's
// progress is never stored: it is always recomputed by replaying the full
// ordered event history, so the event log remains the only durable truth.
package progress

import (
	"math"
	"sort"
	"time"

	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
)

// Trend labels the short-term confidence direction for a topic.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// TopicProgress is the replayed mastery state for one student/topic pair.
type TopicProgress struct {
	// Topic name, as reported by interaction events.
	Topic string `json:"topic"`

	// MasteryLevel is the 0-100 mastery estimate, clamped at both ends.
	MasteryLevel int `json:"mastery_level"`

	// AttemptCount is the number of interactions replayed for the topic.
	AttemptCount int `json:"attempt_count"`

	// DepthProgress is the highest depth reached via applied/mastery
	// successes. Monotonically non-decreasing within a replay.
	DepthProgress telemetry.Depth `json:"depth_progress"`

	// DepthAttempts counts interactions per depth tier.
	DepthAttempts map[telemetry.Depth]int `json:"depth_attempts"`

	// ConfidenceTrend compares recent mastery snapshots against the
	// preceding window once at least 3 snapshots exist.
	ConfidenceTrend Trend `json:"confidence_trend"`

	// ErrorFrequency counts reported mistake patterns.
	ErrorFrequency map[string]int `json:"error_frequency"`

	// MasteryHistory is the mastery level after each replayed event.
	MasteryHistory []int `json:"mastery_history"`

	// ReasoningAverage is the running mean of reasoning-quality scores.
	ReasoningAverage float64 `json:"reasoning_average"`

	// ReasoningSamples is the number of scores folded into the average.
	ReasoningSamples int `json:"reasoning_samples"`

	// LastInteraction is the client timestamp of the latest replayed event.
	LastInteraction time.Time `json:"last_interaction"`
}

// TotalErrors sums all accumulated mistake-pattern counts.
func (tp *TopicProgress) TotalErrors() int {
	total := 0
	for _, n := range tp.ErrorFrequency {
		total += n
	}
	return total
}

// TopErrorPatterns returns up to limit mistake patterns ordered by frequency
// descending, ties broken alphabetically for determinism.
func (tp *TopicProgress) TopErrorPatterns(limit int) []string {
	patterns := make([]string, 0, len(tp.ErrorFrequency))
	for p := range tp.ErrorFrequency {
		patterns = append(patterns, p)
	}
	sort.Slice(patterns, func(i, j int) bool {
		if tp.ErrorFrequency[patterns[i]] != tp.ErrorFrequency[patterns[j]] {
			return tp.ErrorFrequency[patterns[i]] > tp.ErrorFrequency[patterns[j]]
		}
		return patterns[i] < patterns[j]
	})
	if limit > 0 && len(patterns) > limit {
		patterns = patterns[:limit]
	}
	return patterns
}

// StudentProgress holds the replayed state for every topic a student touched.
type StudentProgress struct {
	// StudentHash is the anonymized student identifier.
	StudentHash string `json:"student_hash"`

	// Topics maps topic name to replayed progress.
	Topics map[string]*TopicProgress `json:"topics"`
}

// OverallMastery is the unweighted mean of all topic mastery levels, rounded
// to the nearest integer. Zero when no topics exist.
func (sp *StudentProgress) OverallMastery() int {
	if len(sp.Topics) == 0 {
		return 0
	}
	sum := 0
	for _, tp := range sp.Topics {
		sum += tp.MasteryLevel
	}
	return int(math.Round(float64(sum) / float64(len(sp.Topics))))
}

// TopicNames returns topic names sorted alphabetically for deterministic
// iteration.
func (sp *StudentProgress) TopicNames() []string {
	names := make([]string, 0, len(sp.Topics))
	for name := range sp.Topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HighestMasteryTopic returns the topic with the highest mastery level, ties
// broken alphabetically. Empty string when no topics exist.
func (sp *StudentProgress) HighestMasteryTopic() string {
	best := ""
	bestLevel := -1
	for _, name := range sp.TopicNames() {
		if sp.Topics[name].MasteryLevel > bestLevel {
			best = name
			bestLevel = sp.Topics[name].MasteryLevel
		}
	}
	return best
}
