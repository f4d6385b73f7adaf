package strategy

import (
	"math"

	"github.com/heliosquant/tradecore/internal/types"
)

// newTrendFollowing builds the trend-following variant: five entry
// conditions with a default quorum of 4, two-stage exit (half the size at
// the first take-profit, the remainder trailed on the higher of the
// SuperTrend stop and a chandelier level).
func newTrendFollowing(cfg Config) *Evaluator {
	quorum := cfg.Quorum
	if quorum == 0 {
		quorum = 4
	}

	conditions := []Condition{
		{
			Name: "trend_alignment",
			// Any of the three alignment checks is enough; trends rarely
			// satisfy all of them at the same bar.
			Check: func(prev, cur types.Bar) bool {
				if emaSlow, ok := cur.Indicator(types.IndicatorEMASlow); ok && cur.Close > emaSlow {
					return true
				}

				if st, ok := cur.Indicator(types.IndicatorSuperTrend); ok && st > 0 {
					return true
				}

				emaFast, okFast := cur.Indicator(types.IndicatorEMAFast)
				emaMid, okMid := cur.Indicator(types.IndicatorEMAMid)

				return okFast && okMid && emaFast > emaMid
			},
		},
		{
			Name: "momentum",
			Check: func(prev, cur types.Bar) bool {
				rsi, ok := cur.Indicator(types.IndicatorRSI)
				if !ok {
					return false
				}

				if rsi > cfg.RSIThreshold {
					return true
				}

				prevRSI, ok := prev.Indicator(types.IndicatorRSI)

				return ok && rsi > prevRSI
			},
		},
		{
			Name: "volume_above_sma",
			Check: func(prev, cur types.Bar) bool {
				volumeSMA, ok := cur.Indicator(types.IndicatorVolumeSMA)

				return ok && cur.Volume > volumeSMA*cfg.VolumeSMAMultiplier
			},
		},
		{
			Name: "volatility_above_average",
			Check: func(prev, cur types.Bar) bool {
				atr, okATR := cur.Indicator(types.IndicatorATR)
				atrMA, okMA := cur.Indicator(types.IndicatorATRMA)

				return okATR && okMA && atr > atrMA*cfg.ATRMAMultiplier
			},
		},
		{
			Name: "funding_rate_bound",
			// Spot feeds carry no funding rate; the bound only binds when
			// the key is present.
			Check: func(prev, cur types.Bar) bool {
				fundingRate, ok := cur.Indicator(types.IndicatorFundingRate)
				if !ok {
					return true
				}

				return math.Abs(fundingRate) <= cfg.FundingRateBound
			},
		},
	}

	return &Evaluator{
		cfg: cfg,
		rule: EntryRule{
			Conditions: conditions,
			Quorum:     quorum,
		},
		kind: ExitTwoStageTrailing,
	}
}
