package strategy

import (
	"time"

	"github.com/heliosquant/tradecore/internal/types"
)

// newMultiTimeframe builds the multi-timeframe trend variant: strict entry
// conditions (every one must hold by default), a session-hours filter, a
// higher-timeframe confirmation flag delivered by the feed, a swing-low
// floor under the initial stop, and reduced size on weekends. The exit is
// the same two-stage trailing policy as the trend-following variant.
func newMultiTimeframe(cfg Config) *Evaluator {
	conditions := []Condition{
		{
			Name: "strict_trend_alignment",
			Check: func(prev, cur types.Bar) bool {
				emaSlow, okSlow := cur.Indicator(types.IndicatorEMASlow)
				emaFast, okFast := cur.Indicator(types.IndicatorEMAFast)
				emaMid, okMid := cur.Indicator(types.IndicatorEMAMid)
				prevFast, okPrev := prev.Indicator(types.IndicatorEMAFast)

				if !okSlow || !okFast || !okMid || !okPrev {
					return false
				}

				return cur.Close > emaSlow && emaFast > emaMid && emaFast > prevFast
			},
		},
		{
			Name: "momentum_strict",
			Check: func(prev, cur types.Bar) bool {
				rsi, ok := cur.Indicator(types.IndicatorRSI)
				if !ok {
					return false
				}

				prevRSI, ok := prev.Indicator(types.IndicatorRSI)

				return ok && rsi > cfg.RSIThreshold && rsi > prevRSI
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
			Name: "within_trade_hours",
			Check: func(prev, cur types.Bar) bool {
				hour := cur.Timestamp.UTC().Hour()

				return hour >= cfg.TradeHourStart && hour <= cfg.TradeHourEnd
			},
		},
		{
			Name: "higher_timeframe_confirmed",
			// The feed aligns hourly confirmation to each bar and delivers
			// it as a 0/1 indicator.
			Check: func(prev, cur types.Bar) bool {
				if !cfg.UseHTFConfirmation {
					return true
				}

				confirmed, ok := cur.Indicator(types.IndicatorHTFConfirmed)

				return ok && confirmed >= 1
			},
		},
	}

	quorum := cfg.Quorum
	if quorum == 0 {
		quorum = len(conditions)
	}

	return &Evaluator{
		cfg: cfg,
		rule: EntryRule{
			Conditions: conditions,
			Quorum:     quorum,
		},
		kind:             ExitTwoStageTrailing,
		useSwingLowFloor: true,
	}
}

// isWeekend reports whether the bar falls in the thin Friday-through-Sunday
// sessions.
func isWeekend(ts time.Time) bool {
	switch ts.UTC().Weekday() {
	case time.Friday, time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}
