// Package types contains common types used across the application
package types

import "strings"

// RiskLevel classifies volatility against the configured thresholds.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// riskRank orders levels for minimum-severity filtering.
var riskRank = map[RiskLevel]int{
	RiskLow:    0,
	RiskMedium: 1,
	RiskHigh:   2,
}

// AtLeast reports whether l meets or exceeds min.
// Unknown levels never satisfy a minimum.
func (l RiskLevel) AtLeast(min RiskLevel) bool {
	lr, ok := riskRank[l]
	if !ok {
		return false
	}
	mr, ok := riskRank[min]
	if !ok {
		return false
	}
	return lr >= mr
}

// Valid reports whether l is one of the known levels.
func (l RiskLevel) Valid() bool {
	_, ok := riskRank[l]
	return ok
}

// Upper returns the artifact spelling of the level (LOW, MEDIUM, HIGH).
func (l RiskLevel) Upper() string {
	return strings.ToUpper(string(l))
}

// ParseRiskLevel normalizes a user-supplied level string.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	l := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Valid()
}

// Trend describes the direction of the window's half-to-half mean shift.
type Trend string

const (
	TrendImproving     Trend = "improving"
	TrendSteady        Trend = "steady"
	TrendDeteriorating Trend = "deteriorating"
)

// Title returns the wire spelling used by the API (Improving, Steady, ...).
func (t Trend) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Band is a human-readable interpretation label for stability.
type Band string

const (
	BandHigh   Band = "High"
	BandMedium Band = "Medium"
	BandLow    Band = "Low"
)

// ContinuityLabel maps a risk level to the trust-continuity wording
// used by the interpretation block.
func ContinuityLabel(l RiskLevel) string {
	switch l {
	case RiskHigh:
		return "Critical"
	case RiskMedium:
		return "At Risk"
	default:
		return "Stable"
	}
}

// MetricName identifies which snapshot metric a finding refers to.
type MetricName string

const (
	MetricVolatility MetricName = "volatility"
	MetricStability  MetricName = "stability"
)
