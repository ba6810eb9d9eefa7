package insight

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
)

func TestMap_SignalDispatch(t *testing.T) {
	mapper := NewMapper()

	rec := mapper.Map(SignalIncreaseDepth, "algebra")
	assert.Equal(t, SignalIncreaseDepth, rec.Signal)
	assert.Equal(t, 0.9, rec.Confidence)
	assert.Equal(t, SuggestMastery, rec.SuggestedDepth)
	assert.Contains(t, rec.Reason, "algebra")

	rec = mapper.Map(SignalReduceComplexity, "algebra")
	assert.Equal(t, 0.85, rec.Confidence)
	assert.Equal(t, SuggestCore, rec.SuggestedDepth)

	rec = mapper.Map(SignalPracticeMore, "algebra")
	assert.Equal(t, 0.8, rec.Confidence)

	rec = mapper.Map(SignalReadyForMastery, "algebra")
	assert.Equal(t, 0.75, rec.Confidence)

	rec = mapper.Map(SignalMaintainLevel, "")
	assert.Equal(t, 0.7, rec.Confidence)
	assert.Contains(t, rec.Reason, "the current topic")
}

func TestSuggestDepth_Gates(t *testing.T) {
	mapper := NewMapper()

	core := &progress.TopicProgress{
		DepthProgress:   telemetry.DepthCore,
		MasteryLevel:    70,
		ConfidenceTrend: progress.TrendImproving,
	}
	assert.Equal(t, SuggestApplied, mapper.SuggestDepth(core))

	// Same mastery but flat trend holds the student back.
	core.ConfidenceTrend = progress.TrendStable
	assert.Equal(t, SuggestMaintain, mapper.SuggestDepth(core))

	applied := &progress.TopicProgress{
		DepthProgress:   telemetry.DepthApplied,
		MasteryLevel:    85,
		ConfidenceTrend: progress.TrendImproving,
	}
	assert.Equal(t, SuggestMastery, mapper.SuggestDepth(applied))

	applied.MasteryLevel = 84
	assert.Equal(t, SuggestMaintain, mapper.SuggestDepth(applied))
}

func TestSuggestIntensity(t *testing.T) {
	mapper := NewMapper()

	assert.Equal(t, HeavyPractice, mapper.SuggestIntensity(&progress.TopicProgress{
		MasteryLevel: 39,
	}))
	assert.Equal(t, HeavyPractice, mapper.SuggestIntensity(&progress.TopicProgress{
		MasteryLevel:    80,
		ConfidenceTrend: progress.TrendDeclining,
	}))
	assert.Equal(t, HeavyPractice, mapper.SuggestIntensity(&progress.TopicProgress{
		MasteryLevel:   80,
		ErrorFrequency: map[string]int{"sign_error": 6},
	}))
	assert.Equal(t, ReadyToAdvance, mapper.SuggestIntensity(&progress.TopicProgress{
		MasteryLevel:    75,
		ConfidenceTrend: progress.TrendImproving,
	}))
	assert.Equal(t, LightPractice, mapper.SuggestIntensity(&progress.TopicProgress{
		MasteryLevel:    60,
		ConfidenceTrend: progress.TrendStable,
	}))
}

func TestTeachingPlan_OrderedByPriority(t *testing.T) {
	mapper := NewMapper()

	sp := &progress.StudentProgress{
		StudentHash: "hash-1",
		Topics: map[string]*progress.TopicProgress{
			"easy":   {MasteryLevel: 90, DepthProgress: telemetry.DepthMastery},
			"medium": {MasteryLevel: 60, DepthProgress: telemetry.DepthApplied},
			"hard":   {MasteryLevel: 20, DepthProgress: telemetry.DepthCore},
		},
	}

	plan := mapper.TeachingPlan(sp)
	assert.Len(t, plan, 3)
	assert.Equal(t, "hard", plan[0].Topic)
	assert.Equal(t, PriorityHigh, plan[0].Priority)
	assert.Equal(t, "medium", plan[1].Topic)
	assert.Equal(t, PriorityMedium, plan[1].Priority)
	assert.Equal(t, "easy", plan[2].Topic)
	assert.Equal(t, PriorityLow, plan[2].Priority)
}

func TestTeachingPlan_FocusAreasCapped(t *testing.T) {
	mapper := NewMapper()

	sp := &progress.StudentProgress{
		StudentHash: "hash-1",
		Topics: map[string]*progress.TopicProgress{
			"algebra": {
				MasteryLevel: 30,
				ErrorFrequency: map[string]int{
					"a": 5, "b": 4, "c": 3, "d": 2, "e": 1,
				},
			},
		},
	}

	plan := mapper.TeachingPlan(sp)
	assert.Equal(t, []string{"a", "b", "c"}, plan[0].FocusAreas)
}

func TestNextStep_PicksUrgentTopic(t *testing.T) {
	mapper := NewMapper()

	sp := &progress.StudentProgress{
		StudentHash: "hash-1",
		Topics: map[string]*progress.TopicProgress{
			"fine":     {MasteryLevel: 80},
			"drowning": {MasteryLevel: 15},
		},
	}

	step := mapper.NextStep(sp)
	assert.Equal(t, "drowning", step.Topic)
	assert.Equal(t, HeavyPractice, step.Intensity)
	// ceil((100-15)/10) = 9 attempts at 90s = 810s -> 14 minutes.
	assert.Equal(t, 14, step.EstimatedMinutes)
}

func TestNextStep_AdvancesStrongestWhenNothingUrgent(t *testing.T) {
	mapper := NewMapper()

	sp := &progress.StudentProgress{
		StudentHash: "hash-1",
		Topics: map[string]*progress.TopicProgress{
			"good":   {MasteryLevel: 70},
			"better": {MasteryLevel: 85},
		},
	}

	step := mapper.NextStep(sp)
	assert.Equal(t, "better", step.Topic)
}

func TestNextStep_NilWithoutTopics(t *testing.T) {
	mapper := NewMapper()

	assert.Nil(t, mapper.NextStep(nil))
	assert.Nil(t, mapper.NextStep(&progress.StudentProgress{Topics: map[string]*progress.TopicProgress{}}))
}

func TestEstimateMinutes(t *testing.T) {
	assert.Equal(t, 0, estimateMinutes(100))
	// ceil((100-95)/10) = 1 attempt at 90s -> 2 minutes.
	assert.Equal(t, 2, estimateMinutes(95))
	// 10 attempts at 90s = 900s -> 15 minutes.
	assert.Equal(t, 15, estimateMinutes(0))
}
