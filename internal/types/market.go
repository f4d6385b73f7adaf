package types

import (
	"time"
)

// Well-known indicator keys supplied by the external indicator feed. The
// core never computes these; it only reads them off each bar.
const (
	IndicatorRSI            = "rsi"
	IndicatorATR            = "atr"
	IndicatorATRMA          = "atr_ma"
	IndicatorEMAFast        = "ema_fast"
	IndicatorEMAMid         = "ema_mid"
	IndicatorEMASlow        = "ema_slow"
	IndicatorSuperTrend     = "supertrend"
	IndicatorSuperTrendStop = "supertrend_stop"
	IndicatorVolumeSMA      = "volume_sma"
	IndicatorBBHigh         = "bb_high"
	IndicatorBBMid          = "bb_mid"
	IndicatorBBLow          = "bb_low"
	IndicatorFundingRate    = "funding_rate"
	IndicatorHTFConfirmed   = "htf_confirmed"
	IndicatorSwingLow       = "swing_low"
)

// Bar is one OHLCV sample plus the externally computed indicator snapshot at
// a timestamp. Bars are immutable once handed to the engine and must arrive
// in strictly increasing timestamp order.
type Bar struct {
	Timestamp  time.Time          `csv:"timestamp" yaml:"timestamp"`
	Symbol     string             `csv:"symbol" yaml:"symbol"`
	Open       float64            `csv:"open" yaml:"open"`
	High       float64            `csv:"high" yaml:"high"`
	Low        float64            `csv:"low" yaml:"low"`
	Close      float64            `csv:"close" yaml:"close"`
	Volume     float64            `csv:"volume" yaml:"volume"`
	Indicators map[string]float64 `csv:"-" yaml:"indicators"`
}

// Indicator returns the named indicator value for this bar. The second
// return value is false when the feed did not supply the key; callers treat
// that as "condition not satisfied", never as an error. NaN values are
// reported as missing so that a half-warmed-up indicator series cannot
// satisfy a threshold by accident.
func (b Bar) Indicator(name string) (float64, bool) {
	value, ok := b.Indicators[name]
	if !ok {
		return 0, false
	}

	if value != value { // NaN
		return 0, false
	}

	return value, true
}
