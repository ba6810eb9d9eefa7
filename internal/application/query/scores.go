// Package query contains read operations (CQRS - Queries).
package query

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD SCORES
// Pure scoring arithmetic shared by the dashboard queries. Both scores start
// from 100 and subtract capped penalty terms, so a single bad signal cannot
// push the value below zero on its own.
// ══════════════════════════════════════════════════════════════════════════════

// Severity weights for ethics and privacy incidents.
const (
	weightCheating     = 2
	weightPrivacyAlert = 3
	weightEnforcement  = 1
	weightPromptMod    = 1

	// complianceRateScale converts the incidents-per-interaction rate into a
	// 0-100 penalty. A rate of 0.5 already exhausts the score.
	complianceRateScale = 200
)

// Health penalty caps and scales.
const (
	healthErrorRateScale   = 200.0
	healthErrorRateCap     = 40.0
	healthLatencyDivisorMs = 100.0
	healthLatencyCap       = 30.0
	healthFatalWeight      = 10.0
	healthFatalCap         = 30.0
)

// Quality trend labels use a deadband so sampling noise between adjacent
// windows does not flap the label.
const qualityTrendDeadband = 0.02

// ComplianceScore computes the 0-100 academic-integrity score for a window.
// severity = 2*cheating + 3*privacyAlerts + enforcements + promptMods, scored
// against the interaction volume of the same window. An empty window with no
// incidents is perfectly compliant; incidents with zero interactions floor
// the score.
func ComplianceScore(cheating, privacyAlerts, enforcements, promptMods, interactions int) int {
	severity := weightCheating*cheating +
		weightPrivacyAlert*privacyAlerts +
		weightEnforcement*enforcements +
		weightPromptMod*promptMods

	if severity == 0 {
		return 100
	}
	if interactions == 0 {
		return 0
	}

	rate := float64(severity) / float64(interactions)
	penalty := math.Min(100, rate*complianceRateScale)
	return clampScore(100 - int(math.Round(penalty)))
}

// HealthScore computes the 0-100 operational score from the window's error
// rate (system_error events over all events), mean model latency, and the
// count of fatal errors still in the window.
func HealthScore(errorRate float64, avgLatencyMs float64, fatalErrors int) int {
	errPenalty := math.Min(healthErrorRateCap, errorRate*healthErrorRateScale)
	latPenalty := math.Min(healthLatencyCap, avgLatencyMs/healthLatencyDivisorMs)
	fatalPenalty := math.Min(healthFatalCap, float64(fatalErrors)*healthFatalWeight)

	return clampScore(100 - int(math.Round(errPenalty+latPenalty+fatalPenalty)))
}

// QualityTrendLabel compares mean reasoning quality across adjacent windows.
func QualityTrendLabel(current, previous float64) string {
	switch {
	case current-previous > qualityTrendDeadband:
		return "improving"
	case previous-current > qualityTrendDeadband:
		return "declining"
	default:
		return "stable"
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
