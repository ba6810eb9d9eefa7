package insight

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edupulse/edupulse-insights/internal/domain/progress"
	"github.com/edupulse/edupulse-insights/internal/domain/telemetry"
)

func topicAt(level int) *progress.TopicProgress {
	return &progress.TopicProgress{
		MasteryLevel:    level,
		AttemptCount:    10,
		DepthProgress:   telemetry.DepthCore,
		DepthAttempts:   map[telemetry.Depth]int{telemetry.DepthCore: 10},
		ConfidenceTrend: progress.TrendStable,
		ErrorFrequency:  map[string]int{},
		MasteryHistory:  []int{level, level, level},
	}
}

func studentWith(topics map[string]*progress.TopicProgress) *progress.StudentProgress {
	return &progress.StudentProgress{StudentHash: "hash-1", Topics: topics}
}

func TestDerive_NilOnEmptyProgress(t *testing.T) {
	engine := NewEngine()

	assert.Nil(t, engine.Derive(nil))
	assert.Nil(t, engine.Derive(studentWith(map[string]*progress.TopicProgress{})))
}

func TestDerive_StrengthsAndWeaknesses(t *testing.T) {
	engine := NewEngine()

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{
		"algebra":  topicAt(90),
		"geometry": topicAt(75),
		"calculus": topicAt(49),
		"physics":  topicAt(10),
		"logic":    topicAt(60),
	}))

	assert.Equal(t, []TopicScore{
		{Topic: "algebra", Mastery: 90},
		{Topic: "geometry", Mastery: 75},
	}, ins.Strengths)
	assert.Equal(t, []TopicScore{
		{Topic: "physics", Mastery: 10},
		{Topic: "calculus", Mastery: 49},
	}, ins.Weaknesses)
}

func TestDerive_StrengthsCappedAtFive(t *testing.T) {
	engine := NewEngine()

	topics := make(map[string]*progress.TopicProgress)
	for i := 0; i < 7; i++ {
		topics[fmt.Sprintf("topic-%d", i)] = topicAt(80 + i)
	}

	ins := engine.Derive(studentWith(topics))
	assert.Len(t, ins.Strengths, 5)
	// Strongest first.
	assert.Equal(t, 86, ins.Strengths[0].Mastery)
}

func TestDerive_SuggestedNextTopic_ProductiveRangeWins(t *testing.T) {
	engine := NewEngine()

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{
		"weak":   topicAt(20),
		"mid":    topicAt(60),
		"higher": topicAt(79),
		"done":   topicAt(95),
	}))

	// Highest mastery inside [50,80).
	assert.Equal(t, "higher", ins.SuggestedNextTopic)
}

func TestDerive_SuggestedNextTopic_FallsBackToWeakest(t *testing.T) {
	engine := NewEngine()

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{
		"bad":   topicAt(25),
		"worse": topicAt(5),
		"done":  topicAt(95),
	}))

	assert.Equal(t, "worse", ins.SuggestedNextTopic)
}

func TestDerive_SuggestedNextTopic_FirstAlphabeticalFallback(t *testing.T) {
	engine := NewEngine()

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{
		"zeta":  topicAt(95),
		"alpha": topicAt(85),
	}))

	assert.Equal(t, "alpha", ins.SuggestedNextTopic)
}

func TestDerive_AdaptiveSignal_IncreaseDepth(t *testing.T) {
	engine := NewEngine()

	top := topicAt(95)
	top.ConfidenceTrend = progress.TrendImproving

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{
		"algebra":  top,
		"geometry": topicAt(85),
	}))

	assert.Equal(t, SignalIncreaseDepth, ins.AdaptiveSignal)
}

func TestDerive_AdaptiveSignal_MaintainLevelMidRange(t *testing.T) {
	engine := NewEngine()

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{
		"algebra": topicAt(60),
	}))

	assert.Equal(t, SignalMaintainLevel, ins.AdaptiveSignal)
}

func TestDerive_AdaptiveSignal_ReduceComplexityWhenLow(t *testing.T) {
	engine := NewEngine()

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{
		"algebra": topicAt(30),
	}))

	assert.Equal(t, SignalReduceComplexity, ins.AdaptiveSignal)
}

func TestDerive_AdaptiveSignal_HighMasteryWithoutImprovingTrend(t *testing.T) {
	engine := NewEngine()

	// Overall >= 85 but the top topic is not improving, so the first rule
	// does not fire and the chain falls through.
	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{
		"algebra": topicAt(90),
	}))

	assert.NotEqual(t, SignalIncreaseDepth, ins.AdaptiveSignal)
}

func TestDerive_Recommendations_FallbackWhenNoSignal(t *testing.T) {
	engine := NewEngine()

	tp := topicAt(60)
	tp.MasteryHistory = []int{60} // too thin for a trend

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{"algebra": tp}))

	assert.NotEmpty(t, ins.Recommendations)
	assert.LessOrEqual(t, len(ins.Recommendations), 7)
}

func TestDerive_MasteryTrendSteadyWithoutHistory(t *testing.T) {
	engine := NewEngine()

	tp := topicAt(60)
	tp.MasteryHistory = []int{60, 60} // below the minimum history

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{"algebra": tp}))
	assert.Equal(t, TrendSteady, ins.MasteryTrend)
}

func TestDerive_MasteryTrendAccelerating(t *testing.T) {
	engine := NewEngine()

	tp := topicAt(100)
	// Last window mean 80, prior window mean 30: delta 50.
	tp.MasteryHistory = []int{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{"algebra": tp}))
	assert.Equal(t, TrendAccelerating, ins.MasteryTrend)
}

func TestDerive_MasteryTrendDeclining(t *testing.T) {
	engine := NewEngine()

	tp := topicAt(10)
	tp.MasteryHistory = []int{100, 90, 80, 70, 60, 50, 40, 30, 20, 10}

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{"algebra": tp}))
	assert.Equal(t, TrendDeclining, ins.MasteryTrend)
}

func TestDerive_MasteryTrendPlateauing(t *testing.T) {
	engine := NewEngine()

	tp := topicAt(50)
	tp.MasteryHistory = []int{50, 50, 50, 50, 50, 50, 50, 50, 50, 50}

	ins := engine.Derive(studentWith(map[string]*progress.TopicProgress{"algebra": tp}))
	assert.Equal(t, TrendPlateauing, ins.MasteryTrend)
}
