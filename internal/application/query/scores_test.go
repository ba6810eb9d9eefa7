package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComplianceScore_NoIncidentsIsPerfect(t *testing.T) {
	assert.Equal(t, 100, ComplianceScore(0, 0, 0, 0, 0))
	assert.Equal(t, 100, ComplianceScore(0, 0, 0, 0, 500))
}

func TestComplianceScore_IncidentsWithoutInteractionsFloor(t *testing.T) {
	assert.Equal(t, 0, ComplianceScore(1, 0, 0, 0, 0))
}

func TestComplianceScore_WeightedSeverity(t *testing.T) {
	// severity = 2*2 + 3*1 = 7 over 10 interactions: rate 0.7, penalty
	// capped at 100, score 0.
	assert.Equal(t, 0, ComplianceScore(2, 1, 0, 0, 10))

	// severity = 1 over 100 interactions: rate 0.01, penalty 2, score 98.
	assert.Equal(t, 98, ComplianceScore(0, 0, 1, 0, 100))

	// severity = 2+3+1+1 = 7 over 1000 interactions: penalty 1.4 rounds to 1.
	assert.Equal(t, 99, ComplianceScore(1, 1, 1, 1, 1000))
}

func TestHealthScore_Perfect(t *testing.T) {
	assert.Equal(t, 100, HealthScore(0, 0, 0))
}

func TestHealthScore_PenaltiesAreCapped(t *testing.T) {
	// Error rate 1.0 would be penalty 200 uncapped; cap holds it at 40.
	assert.Equal(t, 60, HealthScore(1.0, 0, 0))

	// 10s mean latency would be penalty 100 uncapped; cap holds it at 30.
	assert.Equal(t, 70, HealthScore(0, 10_000, 0))

	// 10 fatals would be penalty 100 uncapped; cap holds it at 30.
	assert.Equal(t, 70, HealthScore(0, 0, 10))

	// All three caps together still leave a floor of zero, not negative.
	assert.Equal(t, 0, HealthScore(1.0, 10_000, 10))
}

func TestHealthScore_ModerateDegradation(t *testing.T) {
	// Error rate 0.05 -> 10, latency 500ms -> 5, one fatal -> 10.
	assert.Equal(t, 75, HealthScore(0.05, 500, 1))
}

func TestQualityTrendLabel(t *testing.T) {
	assert.Equal(t, "improving", QualityTrendLabel(0.80, 0.70))
	assert.Equal(t, "declining", QualityTrendLabel(0.60, 0.70))

	// Movement inside the deadband is noise.
	assert.Equal(t, "stable", QualityTrendLabel(0.71, 0.70))
	assert.Equal(t, "stable", QualityTrendLabel(0.69, 0.70))
	assert.Equal(t, "stable", QualityTrendLabel(0.70, 0.70))
}
