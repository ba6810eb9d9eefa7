// Package insight derives teaching signals from replayed student progress:
// strengths, weaknesses, trend labels, and the adaptive signal that drives
// the tutoring loop. Everything here is a pure view over progress state and
// is recomputed on demand, never persisted.
package insight

import (
	"fmt"
	"sort"

	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
)

// Signal is the discrete adaptive signal for a student.
type Signal string

const (
	SignalIncreaseDepth    Signal = "INCREASE_DEPTH"
	SignalMaintainLevel    Signal = "MAINTAIN_LEVEL"
	SignalReduceComplexity Signal = "REDUCE_COMPLEXITY"
	SignalPracticeMore     Signal = "PRACTICE_MORE"
	SignalReadyForMastery  Signal = "READY_FOR_MASTERY"
)

// MasteryTrend labels a student's cross-topic trajectory.
type MasteryTrend string

const (
	TrendAccelerating MasteryTrend = "accelerating"
	TrendSteady       MasteryTrend = "steady"
	TrendPlateauing   MasteryTrend = "plateauing"
	TrendDeclining    MasteryTrend = "declining"
)

const (
	strengthThreshold  = 75
	weaknessThreshold  = 50
	maxListedTopics    = 5
	maxRecommendations = 7

	// Cross-topic trend gates: a non-steady label requires both a majority
	// of eligible topics moving and the average window delta clearing the
	// gate.
	accelAvgDelta   = 8.0
	declineAvgDelta = -10.0
	plateauAvgDelta = 3.0
	trendWindowSize = 5
	trendMinHistory = 3
)

// TopicScore pairs a topic with its mastery level for ranked lists.
type TopicScore struct {
	Topic   string `json:"topic"`
	Mastery int    `json:"mastery"`
}

// Insight is the derived view for one student.
type Insight struct {
	StudentHash        string       `json:"student_hash"`
	OverallMastery     int          `json:"overall_mastery"`
	Strengths          []TopicScore `json:"strengths"`
	Weaknesses         []TopicScore `json:"weaknesses"`
	Recommendations    []string     `json:"recommendations"`
	MasteryTrend       MasteryTrend `json:"mastery_trend"`
	SuggestedNextTopic string       `json:"suggested_next_topic,omitempty"`
	AdaptiveSignal     Signal       `json:"adaptive_signal"`
}

// Engine derives insights from student progress snapshots.
type Engine struct{}

// NewEngine creates an insight engine.
func NewEngine() *Engine { return &Engine{} }

// Derive computes the full insight view for a student. Returns nil when the
// snapshot is nil or empty: callers must treat nil as "no data yet".
func (e *Engine) Derive(sp *progress.StudentProgress) *Insight {
	if sp == nil || len(sp.Topics) == 0 {
		return nil
	}

	trend := e.masteryTrend(sp)
	ins := &Insight{
		StudentHash:        sp.StudentHash,
		OverallMastery:     sp.OverallMastery(),
		Strengths:          e.strengths(sp),
		Weaknesses:         e.weaknesses(sp),
		MasteryTrend:       trend,
		SuggestedNextTopic: e.suggestNextTopic(sp),
	}
	ins.AdaptiveSignal = e.adaptiveSignal(sp, trend)
	ins.Recommendations = e.recommendations(sp, ins)
	return ins
}

// strengths lists topics at or above the strength threshold, strongest first.
func (e *Engine) strengths(sp *progress.StudentProgress) []TopicScore {
	var out []TopicScore
	for _, name := range sp.TopicNames() {
		if m := sp.Topics[name].MasteryLevel; m >= strengthThreshold {
			out = append(out, TopicScore{Topic: name, Mastery: m})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mastery > out[j].Mastery })
	if len(out) > maxListedTopics {
		out = out[:maxListedTopics]
	}
	return out
}

// weaknesses lists topics below the weakness threshold, weakest first.
func (e *Engine) weaknesses(sp *progress.StudentProgress) []TopicScore {
	var out []TopicScore
	for _, name := range sp.TopicNames() {
		if m := sp.Topics[name].MasteryLevel; m < weaknessThreshold {
			out = append(out, TopicScore{Topic: name, Mastery: m})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mastery < out[j].Mastery })
	if len(out) > maxListedTopics {
		out = out[:maxListedTopics]
	}
	return out
}

// masteryTrend aggregates per-topic window deltas into one label. Only topics
// with enough history participate; ties and thin data default to steady.
func (e *Engine) masteryTrend(sp *progress.StudentProgress) MasteryTrend {
	improving, declining, eligible := 0, 0, 0
	deltaSum := 0.0

	for _, name := range sp.TopicNames() {
		tp := sp.Topics[name]
		if len(tp.MasteryHistory) < trendMinHistory {
			continue
		}
		eligible++
		delta := windowDelta(tp.MasteryHistory)
		deltaSum += delta
		switch {
		case delta > 0:
			improving++
		case delta < 0:
			declining++
		}
	}

	if eligible == 0 {
		return TrendSteady
	}

	avgDelta := deltaSum / float64(eligible)
	majority := eligible / 2 // strictly more than half required

	switch {
	case improving > majority && avgDelta > accelAvgDelta:
		return TrendAccelerating
	case declining > majority && avgDelta < declineAvgDelta:
		return TrendDeclining
	case improving+declining <= majority && avgDelta < plateauAvgDelta && avgDelta > -plateauAvgDelta:
		return TrendPlateauing
	default:
		return TrendSteady
	}
}

// windowDelta is mean(last 5 points) - mean(preceding 5 points), with the
// windows never overlapping.
func windowDelta(history []int) float64 {
	recent := tail(history, 0)
	prior := tail(history, len(recent))
	if len(prior) == 0 {
		return 0
	}
	return meanInts(recent) - meanInts(prior)
}

func tail(history []int, skip int) []int {
	end := len(history) - skip
	if end <= 0 {
		return nil
	}
	start := end - trendWindowSize
	if start < 0 {
		start = 0
	}
	return history[start:end]
}

func meanInts(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

// suggestNextTopic prefers a topic in the productive range [50,80) with the
// highest mastery among those; else the weakest topic under 30; else the
// first topic alphabetically.
func (e *Engine) suggestNextTopic(sp *progress.StudentProgress) string {
	names := sp.TopicNames()

	best := ""
	bestLevel := -1
	for _, name := range names {
		m := sp.Topics[name].MasteryLevel
		if m >= 50 && m < 80 && m > bestLevel {
			best = name
			bestLevel = m
		}
	}
	if best != "" {
		return best
	}

	weakest := ""
	weakestLevel := 101
	for _, name := range names {
		m := sp.Topics[name].MasteryLevel
		if m < 30 && m < weakestLevel {
			weakest = name
			weakestLevel = m
		}
	}
	if weakest != "" {
		return weakest
	}

	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// adaptiveSignal applies the fixed precedence chain. Order matters: the
// first matching rule wins.
func (e *Engine) adaptiveSignal(sp *progress.StudentProgress, trend MasteryTrend) Signal {
	overall := sp.OverallMastery()

	if overall >= 85 {
		if top := sp.HighestMasteryTopic(); top != "" &&
			sp.Topics[top].ConfidenceTrend == progress.TrendImproving {
			return SignalIncreaseDepth
		}
	}
	if overall >= 50 && overall < 85 && trend != TrendDeclining {
		return SignalMaintainLevel
	}
	if overall < 50 || trend == TrendDeclining {
		return SignalReduceComplexity
	}
	for _, name := range sp.TopicNames() {
		tp := sp.Topics[name]
		if tp.TotalErrors() >= 3 && tp.AttemptCount < 5 {
			return SignalPracticeMore
		}
	}
	for _, name := range sp.TopicNames() {
		tp := sp.Topics[name]
		if tp.DepthProgress == telemetry.DepthCore && tp.MasteryLevel >= 80 {
			return SignalReadyForMastery
		}
	}
	return SignalMaintainLevel
}

// recommendations produces rule-based free-text guidance, deduplicated by
// rule, capped, with a fallback when nothing fires.
func (e *Engine) recommendations(sp *progress.StudentProgress, ins *Insight) []string {
	var recs []string
	add := func(msg string) {
		if len(recs) < maxRecommendations {
			recs = append(recs, msg)
		}
	}

	if len(ins.Weaknesses) > 0 {
		add(fmt.Sprintf("Revisit the fundamentals of %s before introducing new material.", ins.Weaknesses[0].Topic))
	}
	if ins.MasteryTrend == TrendDeclining {
		add("Recent sessions show declining mastery; shorten sessions and lower difficulty temporarily.")
	}
	if ins.MasteryTrend == TrendPlateauing {
		add("Progress has plateaued; vary exercise formats to re-engage.")
	}
	for _, name := range sp.TopicNames() {
		tp := sp.Topics[name]
		if patterns := tp.TopErrorPatterns(1); len(patterns) > 0 && tp.ErrorFrequency[patterns[0]] >= 3 {
			add(fmt.Sprintf("Target the recurring mistake %q in %s with focused drills.", patterns[0], name))
			break
		}
	}
	for _, name := range sp.TopicNames() {
		tp := sp.Topics[name]
		if tp.DepthProgress == telemetry.DepthCore && tp.MasteryLevel >= 80 {
			add(fmt.Sprintf("%s is solid at core depth; move to applied problems.", name))
			break
		}
	}
	if len(ins.Strengths) > 0 && ins.OverallMastery >= 85 {
		add(fmt.Sprintf("Use %s as an anchor topic for cross-topic challenges.", ins.Strengths[0].Topic))
	}
	if ins.SuggestedNextTopic != "" {
		add(fmt.Sprintf("Schedule the next session on %s.", ins.SuggestedNextTopic))
	}

	if len(recs) == 0 {
		recs = append(recs, "Keep practicing at the current level; not enough signal for specific guidance yet.")
	}
	return recs
}
