// Package coherence computes stability, volatility, risk, and trend
// indicators from a window of signal observations. Computation is pure:
// no I/O, no ambient configuration, deterministic for a given input and
// threshold set.
package coherence

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/internal/domain/types"
)

// Default engine configuration constants.
const (
	defaultWarnThreshold      = 0.10
	defaultCriticalThreshold  = 0.25
	defaultTrendSensitivity   = 0.05
	defaultNeutralStability   = 1.0
	defaultStabilityHighMin   = 0.90
	defaultStabilityMediumMin = 0.75
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRiskThresholds sets the warn and critical volatility thresholds.
// Both bounds are inclusive at the lower edge of their band.
func WithRiskThresholds(warn, critical float64) Option {
	return func(e *Engine) {
		if warn > 0 && critical > warn {
			e.warnThreshold = warn
			e.criticalThreshold = critical
		}
	}
}

// WithTrendSensitivity sets the relative half-window mean shift required
// before a trend leaves steady.
func WithTrendSensitivity(sensitivity float64) Option {
	return func(e *Engine) {
		if sensitivity > 0 {
			e.trendSensitivity = sensitivity
		}
	}
}

// WithNeutralStability sets the stability reported for an empty window.
func WithNeutralStability(stability float64) Option {
	return func(e *Engine) {
		if stability >= 0 && stability <= 1 {
			e.neutralStability = stability
		}
	}
}

// WithStabilityBands sets the minimum stability for the High and Medium
// interpretation bands. These are independent of the risk thresholds.
func WithStabilityBands(highMin, mediumMin float64) Option {
	return func(e *Engine) {
		if highMin > mediumMin && mediumMin > 0 {
			e.stabilityHighMin = highMin
			e.stabilityMediumMin = mediumMin
		}
	}
}

// WithClock overrides the time source stamped onto snapshots. Tests pin
// it for reproducible output.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine derives a metrics snapshot from a window of observations.
type Engine struct {
	warnThreshold      float64
	criticalThreshold  float64
	trendSensitivity   float64
	neutralStability   float64
	stabilityHighMin   float64
	stabilityMediumMin float64

	riskTable      []riskBand
	stabilityTable []stabilityBand

	now func() time.Time
}

// NewEngine creates an engine with the given options applied over the
// defaults. Threshold tables are materialized once so classification is a
// single ordered lookup.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		warnThreshold:      defaultWarnThreshold,
		criticalThreshold:  defaultCriticalThreshold,
		trendSensitivity:   defaultTrendSensitivity,
		neutralStability:   defaultNeutralStability,
		stabilityHighMin:   defaultStabilityHighMin,
		stabilityMediumMin: defaultStabilityMediumMin,
		now:                time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.riskTable = riskTable(e.warnThreshold, e.criticalThreshold)
	e.stabilityTable = stabilityTable(e.stabilityHighMin, e.stabilityMediumMin)

	return e
}

// Compute derives the snapshot for one signal over one window. The input
// order does not matter; observations are re-ordered by timestamp before
// the half-window split. An empty input is a defined result, not an
// error. Non-finite values fail validation.
func (e *Engine) Compute(signal string, observations []model.Observation, window model.Window) (model.Snapshot, error) {
	snap := model.Snapshot{
		Signal:     signal,
		Window:     window,
		ComputedAt: e.now().UTC(),
	}

	if len(observations) == 0 {
		snap.Stability = e.neutralStability
		snap.Risk = types.RiskLow
		snap.Trend = types.TrendSteady
		return snap, nil
	}

	ordered := make([]model.Observation, len(observations))
	copy(ordered, observations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TS.Before(ordered[j].TS) })

	values := make([]float64, len(ordered))
	for i, o := range ordered {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return model.Snapshot{}, fmt.Errorf("non-finite value for signal %q at %s: %w",
				signal, o.TS.UTC().Format(time.RFC3339), model.ErrValidation)
		}
		values[i] = o.Value
	}

	snap.N = len(values)
	snap.Mean = mean(values)
	snap.Stdev = sampleStdev(values, snap.Mean)

	if snap.Mean != 0 {
		snap.Volatility = snap.Stdev / math.Abs(snap.Mean)
	}

	snap.Stability = math.Max(0, 1-math.Min(snap.Volatility, 1))
	snap.Risk = e.riskFor(snap.Volatility)
	snap.Trend = e.trendFor(values)

	return snap, nil
}

// RiskFor classifies a volatility value against the configured bands.
func (e *Engine) RiskFor(volatility float64) types.RiskLevel {
	return e.riskFor(volatility)
}

// StabilityBand maps a stability value into its interpretation band.
func (e *Engine) StabilityBand(stability float64) types.Band {
	for _, b := range e.stabilityTable {
		if stability >= b.min {
			return b.label
		}
	}
	return types.BandLow
}

// StabilityRisk expresses a stability value as a severity so stability
// findings filter under the same low < medium < high ordering as
// volatility findings.
func (e *Engine) StabilityRisk(stability float64) types.RiskLevel {
	switch e.StabilityBand(stability) {
	case types.BandHigh:
		return types.RiskLow
	case types.BandMedium:
		return types.RiskMedium
	default:
		return types.RiskHigh
	}
}

// trendFor splits values into an earlier and a later half and compares
// their means. An odd middle element joins the earlier half. The shift is
// relative to the earlier mean; a zero earlier mean pins the delta to 0.
func (e *Engine) trendFor(values []float64) types.Trend {
	if len(values) < 2 {
		return types.TrendSteady
	}

	split := (len(values) + 1) / 2
	meanFirst := mean(values[:split])
	meanSecond := mean(values[split:])

	var delta float64
	if meanFirst != 0 {
		delta = (meanSecond - meanFirst) / math.Abs(meanFirst)
	}

	switch {
	case delta >= e.trendSensitivity:
		return types.TrendImproving
	case delta <= -e.trendSensitivity:
		return types.TrendDeteriorating
	default:
		return types.TrendSteady
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// sampleStdev uses the n-1 denominator; fewer than two values yield 0.
func sampleStdev(values []float64, mu float64) float64 {
	if len(values) <= 1 {
		return 0
	}
	var sse float64
	for _, v := range values {
		dv := v - mu
		sse += dv * dv
	}
	return math.Sqrt(sse / float64(len(values)-1))
}
