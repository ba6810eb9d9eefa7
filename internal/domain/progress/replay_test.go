package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
)

func interaction(topic string, depth telemetry.Depth, success bool, quality float64, mistakes ...string) telemetry.Event {
	return telemetry.NewInteractionEvent(time.Now(), telemetry.InteractionPayload{
		StudentHash:      "hash-1",
		Topic:            topic,
		Depth:            depth,
		Success:          success,
		ReasoningQuality: quality,
		MistakePatterns:  mistakes,
	})
}

func TestReplay_CoreSuccesses(t *testing.T) {
	engine := NewEngine()

	events := []telemetry.Event{
		interaction("algebra", telemetry.DepthCore, true, 0.7),
		interaction("algebra", telemetry.DepthCore, true, 0.7),
		interaction("algebra", telemetry.DepthCore, true, 0.7),
	}

	sp := engine.Replay("hash-1", events)
	tp := sp.Topics["algebra"]

	assert.Equal(t, 30, tp.MasteryLevel)
	assert.Equal(t, 3, tp.AttemptCount)
	assert.InDelta(t, 0.7, tp.ReasoningAverage, 1e-9)
	assert.Equal(t, 3, tp.ReasoningSamples)
	assert.Equal(t, telemetry.DepthCore, tp.DepthProgress)
	assert.Equal(t, []int{10, 20, 30}, tp.MasteryHistory)
}

func TestReplay_DepthDeltas(t *testing.T) {
	engine := NewEngine()

	sp := engine.Replay("hash-1", []telemetry.Event{
		interaction("calculus", telemetry.DepthCore, true, 0),
		interaction("calculus", telemetry.DepthApplied, true, 0),
		interaction("calculus", telemetry.DepthMastery, true, 0),
	})

	// 10 + 15 + 25
	assert.Equal(t, 50, sp.Topics["calculus"].MasteryLevel)
}

func TestReplay_FailureClampsAtZero(t *testing.T) {
	engine := NewEngine()

	sp := engine.Replay("hash-1", []telemetry.Event{
		interaction("geometry", telemetry.DepthCore, false, 0),
		interaction("geometry", telemetry.DepthCore, false, 0),
	})

	assert.Equal(t, 0, sp.Topics["geometry"].MasteryLevel)
	assert.Equal(t, 2, sp.Topics["geometry"].AttemptCount)
}

func TestReplay_MasteryClampsAtHundred(t *testing.T) {
	engine := NewEngine()

	var events []telemetry.Event
	for i := 0; i < 6; i++ {
		events = append(events, interaction("algebra", telemetry.DepthMastery, true, 0))
	}

	sp := engine.Replay("hash-1", events)
	assert.Equal(t, 100, sp.Topics["algebra"].MasteryLevel)
}

func TestReplay_DepthProgressNeverRegresses(t *testing.T) {
	engine := NewEngine()

	sp := engine.Replay("hash-1", []telemetry.Event{
		interaction("physics", telemetry.DepthApplied, true, 0),
		interaction("physics", telemetry.DepthCore, false, 0),
		interaction("physics", telemetry.DepthCore, false, 0),
	})

	assert.Equal(t, telemetry.DepthApplied, sp.Topics["physics"].DepthProgress)
}

func TestReplay_CoreSuccessDoesNotAdvanceDepth(t *testing.T) {
	engine := NewEngine()

	sp := engine.Replay("hash-1", []telemetry.Event{
		interaction("physics", telemetry.DepthCore, true, 0),
		interaction("physics", telemetry.DepthCore, true, 0),
	})

	assert.Equal(t, telemetry.DepthCore, sp.Topics["physics"].DepthProgress)
}

func TestReplay_ReasoningRunningMean(t *testing.T) {
	engine := NewEngine()

	sp := engine.Replay("hash-1", []telemetry.Event{
		interaction("algebra", telemetry.DepthCore, true, 0.5),
		interaction("algebra", telemetry.DepthCore, true, 1.0),
	})

	tp := sp.Topics["algebra"]
	assert.InDelta(t, 0.75, tp.ReasoningAverage, 1e-9)
	assert.Equal(t, 2, tp.ReasoningSamples)
}

func TestReplay_ZeroQualityNotSampled(t *testing.T) {
	engine := NewEngine()

	sp := engine.Replay("hash-1", []telemetry.Event{
		interaction("algebra", telemetry.DepthCore, true, 0),
		interaction("algebra", telemetry.DepthCore, true, 0.8),
	})

	tp := sp.Topics["algebra"]
	assert.Equal(t, 1, tp.ReasoningSamples)
	assert.InDelta(t, 0.8, tp.ReasoningAverage, 1e-9)
}

func TestReplay_MistakePatternsCounted(t *testing.T) {
	engine := NewEngine()

	sp := engine.Replay("hash-1", []telemetry.Event{
		interaction("algebra", telemetry.DepthCore, false, 0, "sign_error", "sign_error"),
		interaction("algebra", telemetry.DepthCore, false, 0, "sign_error", "off_by_one"),
	})

	tp := sp.Topics["algebra"]
	assert.Equal(t, 3, tp.ErrorFrequency["sign_error"])
	assert.Equal(t, 1, tp.ErrorFrequency["off_by_one"])
	assert.Equal(t, 4, tp.TotalErrors())
	assert.Equal(t, []string{"sign_error", "off_by_one"}, tp.TopErrorPatterns(2))
}

func TestReplay_ConfidenceTrendImproving(t *testing.T) {
	engine := NewEngine()

	// Ten core successes: history 10..100. Last window mean 80, prior 30.
	var events []telemetry.Event
	for i := 0; i < 10; i++ {
		events = append(events, interaction("algebra", telemetry.DepthCore, true, 0))
	}

	sp := engine.Replay("hash-1", events)
	assert.Equal(t, TrendImproving, sp.Topics["algebra"].ConfidenceTrend)
}

func TestReplay_ConfidenceTrendNeedsHistory(t *testing.T) {
	engine := NewEngine()

	sp := engine.Replay("hash-1", []telemetry.Event{
		interaction("algebra", telemetry.DepthCore, true, 0),
		interaction("algebra", telemetry.DepthCore, true, 0),
	})

	// Two snapshots are below the minimum, trend stays stable.
	assert.Equal(t, TrendStable, sp.Topics["algebra"].ConfidenceTrend)
}

func TestReplay_IgnoresNonInteractionEvents(t *testing.T) {
	engine := NewEngine()

	events := []telemetry.Event{
		telemetry.NewAssignmentEvent(time.Now(), telemetry.AssignmentPayload{
			StudentHash: "hash-1", Topic: "algebra", Action: telemetry.AssignmentEvaluated, ConceptCoverage: 0.9,
		}),
		telemetry.NewEthicsEvent(time.Now(), telemetry.EthicsPayload{
			StudentHash: "hash-1", Category: telemetry.EthicsCheatingDetected,
		}),
		interaction("algebra", telemetry.DepthCore, true, 0),
	}

	sp := engine.Replay("hash-1", events)
	assert.Equal(t, 1, sp.Topics["algebra"].AttemptCount)
	assert.Equal(t, 10, sp.Topics["algebra"].MasteryLevel)
}

func TestReplay_Deterministic(t *testing.T) {
	engine := NewEngine()

	events := []telemetry.Event{
		interaction("algebra", telemetry.DepthCore, true, 0.6),
		interaction("geometry", telemetry.DepthApplied, true, 0.9),
		interaction("algebra", telemetry.DepthCore, false, 0.3, "sign_error"),
	}

	first := engine.Replay("hash-1", events)
	second := engine.Replay("hash-1", events)
	assert.Equal(t, first, second)
}

func TestStudentProgress_OverallMastery(t *testing.T) {
	sp := &StudentProgress{
		StudentHash: "hash-1",
		Topics: map[string]*TopicProgress{
			"a": {MasteryLevel: 80},
			"b": {MasteryLevel: 51},
		},
	}

	// (80 + 51) / 2 = 65.5, rounded to 66.
	assert.Equal(t, 66, sp.OverallMastery())
	assert.Equal(t, []string{"a", "b"}, sp.TopicNames())
	assert.Equal(t, "a", sp.HighestMasteryTopic())
}
