package coherence

import "github.com/sheldongordon4/coherence-engine/internal/domain/types"

// riskBand is one row of the volatility classification table. min is the
// inclusive lower bound of the band.
type riskBand struct {
	min   float64
	level types.RiskLevel
}

// riskTable orders bands highest first so classification is the first row
// whose lower bound the value meets. The trailing zero row makes the
// table gapless.
func riskTable(warn, critical float64) []riskBand {
	return []riskBand{
		{min: critical, level: types.RiskHigh},
		{min: warn, level: types.RiskMedium},
		{min: 0, level: types.RiskLow},
	}
}

func (e *Engine) riskFor(volatility float64) types.RiskLevel {
	for _, b := range e.riskTable {
		if volatility >= b.min {
			return b.level
		}
	}
	return types.RiskLow
}

// stabilityBand is one row of the stability interpretation table,
// configured independently of the risk thresholds.
type stabilityBand struct {
	min   float64
	label types.Band
}

func stabilityTable(highMin, mediumMin float64) []stabilityBand {
	return []stabilityBand{
		{min: highMin, label: types.BandHigh},
		{min: mediumMin, label: types.BandMedium},
	}
}
