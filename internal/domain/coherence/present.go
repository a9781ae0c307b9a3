package coherence

import (
	"time"

	"github.com/sheldongordon4/coherence-engine/internal/domain/model"
	"github.com/sheldongordon4/coherence-engine/internal/domain/types"
)

// Method describes the computation recorded in response metadata.
const Method = "rolling mean/stdev; half-window trend"

// Interpretation carries the human-readable band labels for a snapshot.
type Interpretation struct {
	Stability       types.Band
	TrustContinuity string
	Trend           string
}

// Interpret maps a snapshot into its band labels.
func (e *Engine) Interpret(snap model.Snapshot) Interpretation {
	return Interpretation{
		Stability:       e.StabilityBand(snap.Stability),
		TrustContinuity: types.ContinuityLabel(snap.Risk),
		Trend:           snap.Trend.Title(),
	}
}

// Present serializes a canonical snapshot into the wire mapping. The
// canonical computation stays free of naming concerns; this step owns the
// field names, the interpretation block, and the legacy mirrors
// (coherenceMean, volatilityIndex, predictedDriftRisk) emitted unless the
// caller opts out.
func Present(snap model.Snapshot, interp Interpretation, includeLegacy bool) map[string]any {
	stability := model.Round4(snap.Stability)
	volatility := model.Round4(snap.Volatility)
	risk := string(snap.Risk)

	out := map[string]any{
		"interactionStability":     stability,
		"signalVolatility":         volatility,
		"trustContinuityRiskLevel": risk,
		"coherenceTrend":           interp.Trend,
		"interpretation": map[string]any{
			"stability":       string(interp.Stability),
			"trustContinuity": interp.TrustContinuity,
			"coherenceTrend":  interp.Trend,
		},
		"meta": map[string]any{
			"method":    Method,
			"windowSec": snap.Window.Seconds(),
			"n":         snap.N,
			"timestamp": snap.ComputedAt.UTC().Format(time.RFC3339),
		},
	}

	if includeLegacy {
		out["coherenceMean"] = stability
		out["volatilityIndex"] = volatility
		out["predictedDriftRisk"] = risk
	}

	return out
}
