package strategy

import (
	"github.com/heliosquant/tradecore/internal/types"
)

// newMeanReversion builds the RSI/Bollinger mean-reversion variant: three
// entry conditions with a default quorum of 2, single-stage exit with a
// favorable-move stop ratchet.
func newMeanReversion(cfg Config) *Evaluator {
	quorum := cfg.Quorum
	if quorum == 0 {
		quorum = 2
	}

	conditions := []Condition{
		{
			Name: "rsi_oversold_and_rising",
			Check: func(prev, cur types.Bar) bool {
				rsi, ok := cur.Indicator(types.IndicatorRSI)
				if !ok {
					return false
				}

				prevRSI, ok := prev.Indicator(types.IndicatorRSI)

				return ok && rsi < cfg.RSIOversold && rsi > prevRSI
			},
		},
		{
			Name: "close_below_lower_band",
			Check: func(prev, cur types.Bar) bool {
				bbLow, ok := cur.Indicator(types.IndicatorBBLow)

				return ok && cur.Close < bbLow
			},
		},
		{
			Name: "volume_confirmation",
			// Either above its own moving average or rising sharply bar
			// over bar.
			Check: func(prev, cur types.Bar) bool {
				if volumeMA, ok := cur.Indicator(types.IndicatorVolumeSMA); ok {
					if cur.Volume > volumeMA*cfg.VolumeSMAMultiplier {
						return true
					}
				}

				return prev.Volume > 0 && cur.Volume > prev.Volume*cfg.VolumeRiseMultiplier
			},
		},
	}

	return &Evaluator{
		cfg: cfg,
		rule: EntryRule{
			Conditions: conditions,
			Quorum:     quorum,
		},
		kind:              ExitSingleStage,
		ratchetStopOnGain: true,
	}
}
