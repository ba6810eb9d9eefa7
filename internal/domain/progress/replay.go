package progress

import (
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
)

// Mastery deltas per depth for a successful interaction, and the penalty for
// a failed one. Tuned so that core-only grinding converges slowly while
// mastery-depth successes move fast.
const (
	deltaCoreSuccess    = 10
	deltaAppliedSuccess = 15
	deltaMasterySuccess = 25
	deltaFailure        = 5

	masteryFloor = 0
	masteryCeil  = 100

	// trendWindow is the number of mastery snapshots in each comparison
	// window, and trendMinHistory the minimum snapshots before a trend is
	// computed at all.
	trendWindow     = 5
	trendMinHistory = 3

	// trendDelta is the mean-mastery movement required before the trend
	// leaves "stable".
	trendDelta = 5.0
)

// Replayer recomputes per-topic mastery state from an ordered event history.
// Replay is a pure function of event order: replaying the same sequence twice
// yields identical results, which is what lets progress stay unpersisted.
//
// The interface exists so callers do not bind to the full-replay strategy;
// an incrementally-maintained materialized view can be swapped in later.
type Replayer interface {
	Replay(studentHash string, events []telemetry.Event) *StudentProgress
}

// Engine is the replay-everything Replayer.
type Engine struct{}

// NewEngine creates a replay engine.
func NewEngine() *Engine { return &Engine{} }

// Replay folds a single student's ordered event history into per-topic
// progress. Only interaction events mutate state; other kinds are skipped.
// Events must already be in arrival order as fixed by the event log.
func (e *Engine) Replay(studentHash string, events []telemetry.Event) *StudentProgress {
	sp := &StudentProgress{
		StudentHash: studentHash,
		Topics:      make(map[string]*TopicProgress),
	}

	for i := range events {
		ev := &events[i]
		if ev.Kind != telemetry.KindInteraction || ev.Interaction == nil {
			continue
		}
		p := ev.Interaction
		if p.Topic == "" {
			continue
		}

		tp, ok := sp.Topics[p.Topic]
		if !ok {
			tp = &TopicProgress{
				Topic:           p.Topic,
				DepthProgress:   telemetry.DepthCore,
				DepthAttempts:   make(map[telemetry.Depth]int),
				ConfidenceTrend: TrendStable,
				ErrorFrequency:  make(map[string]int),
			}
			sp.Topics[p.Topic] = tp
		}

		applyInteraction(tp, p, ev)
	}

	return sp
}

// applyInteraction folds one interaction into the topic state.
func applyInteraction(tp *TopicProgress, p *telemetry.InteractionPayload, ev *telemetry.Event) {
	tp.AttemptCount++
	tp.DepthAttempts[p.Depth]++
	tp.LastInteraction = ev.Timestamp

	if p.Success {
		tp.MasteryLevel = clampMastery(tp.MasteryLevel + successDelta(p.Depth))
		// Applied and mastery successes advance the depth tier; it never
		// auto-regresses once reached.
		if p.Depth != telemetry.DepthCore && p.Depth.Rank() > tp.DepthProgress.Rank() {
			tp.DepthProgress = p.Depth
		}
	} else {
		tp.MasteryLevel = clampMastery(tp.MasteryLevel - deltaFailure)
	}

	tp.MasteryHistory = append(tp.MasteryHistory, tp.MasteryLevel)

	if p.ReasoningQuality > 0 {
		n := float64(tp.ReasoningSamples + 1)
		tp.ReasoningAverage = (tp.ReasoningAverage*(n-1) + p.ReasoningQuality) / n
		tp.ReasoningSamples++
	}

	for _, pattern := range p.MistakePatterns {
		if pattern == "" {
			continue
		}
		tp.ErrorFrequency[pattern]++
	}

	if len(tp.MasteryHistory) >= trendMinHistory {
		tp.ConfidenceTrend = trendOf(tp.MasteryHistory)
	}
}

// trendOf compares the mean of the last trendWindow snapshots against the
// mean of the non-overlapping window before them.
func trendOf(history []int) Trend {
	recent := tailWindow(history, 0)
	prior := tailWindow(history, len(recent))
	if len(prior) == 0 {
		return TrendStable
	}

	delta := mean(recent) - mean(prior)
	switch {
	case delta > trendDelta:
		return TrendImproving
	case delta < -trendDelta:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// tailWindow returns up to trendWindow entries ending skip entries before the
// end of history.
func tailWindow(history []int, skip int) []int {
	end := len(history) - skip
	if end <= 0 {
		return nil
	}
	start := end - trendWindow
	if start < 0 {
		start = 0
	}
	return history[start:end]
}

func mean(vals []int) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

func successDelta(d telemetry.Depth) int {
	switch d {
	case telemetry.DepthApplied:
		return deltaAppliedSuccess
	case telemetry.DepthMastery:
		return deltaMasterySuccess
	default:
		return deltaCoreSuccess
	}
}

func clampMastery(v int) int {
	if v < masteryFloor {
		return masteryFloor
	}
	if v > masteryCeil {
		return masteryCeil
	}
	return v
}
