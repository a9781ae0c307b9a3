package model

import (
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/types"
)

// Snapshot is the canonical computed result for one signal over one
// window. It is recomputed fresh on every request and never stored as the
// system of record; naming concerns (wire fields, legacy aliases) live in
// the presentation step, not here.
type Snapshot struct {
	Signal     string
	Window     Window
	N          int
	Mean       float64
	Stdev      float64
	Volatility float64
	Stability  float64
	Risk       types.RiskLevel
	Trend      types.Trend
	ComputedAt time.Time
}

// Finding is one per-signal assessment produced by a sentry evaluation.
type Finding struct {
	Signal string
	Metric types.MetricName
	Value  float64
	Level  types.RiskLevel
}
