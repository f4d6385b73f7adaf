package strategy

import (
	"github.com/go-playground/validator/v10"

	"github.com/heliosquant/tradecore/pkg/errors"
)

// Variant names the built-in strategy variants.
const (
	VariantTrendFollowing = "trend_following"
	VariantMeanReversion  = "mean_reversion"
	VariantMultiTimeframe = "multi_timeframe"
)

// Config is the immutable parameter set for one backtest run. It is supplied
// once, validated once, and never mutated while bars are being processed.
type Config struct {
	Variant string `yaml:"variant" json:"variant" jsonschema:"title=Variant,description=Strategy variant name" validate:"required,oneof=trend_following mean_reversion multi_timeframe"`
	Symbol  string `yaml:"symbol" json:"symbol" jsonschema:"title=Symbol,description=Trading pair symbol" validate:"required"`

	// RiskPerTrade is the fraction of portfolio value put at risk per trade.
	RiskPerTrade float64 `yaml:"risk_per_trade" json:"risk_per_trade" jsonschema:"title=Risk Per Trade,minimum=0,maximum=1" validate:"gt=0,lte=1"`
	// Commission is the fee charged per fill as a fraction of notional.
	Commission float64 `yaml:"commission" json:"commission" jsonschema:"title=Commission,minimum=0" validate:"gte=0,lt=1"`

	// Quorum is the number of entry conditions that must hold for an entry
	// to fire. Zero selects the variant default.
	Quorum int `yaml:"quorum" json:"quorum" jsonschema:"title=Entry Quorum" validate:"gte=0"`

	// Momentum thresholds.
	RSIThreshold float64 `yaml:"rsi_threshold" json:"rsi_threshold"`
	RSIOversold  float64 `yaml:"rsi_oversold" json:"rsi_oversold"`

	// Volume confirmation multipliers.
	VolumeSMAMultiplier  float64 `yaml:"volume_sma_multiplier" json:"volume_sma_multiplier"`
	VolumeRiseMultiplier float64 `yaml:"volume_rise_multiplier" json:"volume_rise_multiplier"`

	// ATRMAMultiplier gates entries on volatility relative to its own average.
	ATRMAMultiplier float64 `yaml:"atr_ma_multiplier" json:"atr_ma_multiplier"`
	// FundingRateBound rejects entries when |funding_rate| exceeds it.
	FundingRateBound float64 `yaml:"funding_rate_bound" json:"funding_rate_bound"`

	// Exit level multipliers, all applied to the entry bar's ATR.
	TakeProfitMultiplier float64 `yaml:"take_profit_multiplier" json:"take_profit_multiplier"`
	StopLossMultiplier   float64 `yaml:"stop_loss_multiplier" json:"stop_loss_multiplier"`
	ChandelierMultiplier float64 `yaml:"chandelier_multiplier" json:"chandelier_multiplier"`
	// Stage1ExitFraction is the fraction of size sold at the first
	// take-profit in the two-stage exit policy.
	Stage1ExitFraction float64 `yaml:"stage1_exit_fraction" json:"stage1_exit_fraction" validate:"gte=0,lt=1"`

	// Multi-timeframe session filters.
	TradeHourStart     int     `yaml:"trade_hour_start" json:"trade_hour_start" validate:"gte=0,lte=23"`
	TradeHourEnd       int     `yaml:"trade_hour_end" json:"trade_hour_end" validate:"gte=0,lte=23"`
	UseHTFConfirmation bool    `yaml:"use_htf_confirmation" json:"use_htf_confirmation"`
	ReduceWeekendSize  bool    `yaml:"reduce_weekend_size" json:"reduce_weekend_size"`
	WeekendSizeScale   float64 `yaml:"weekend_size_scale" json:"weekend_size_scale" validate:"gte=0,lte=1"`
}

// withDefaults returns a copy of c with zero-valued parameters replaced by
// the variant defaults.
func (c Config) withDefaults() Config {
	if c.RiskPerTrade == 0 {
		c.RiskPerTrade = 0.02
	}

	if c.RSIThreshold == 0 {
		c.RSIThreshold = 50
		if c.Variant == VariantMultiTimeframe {
			c.RSIThreshold = 52
		}
	}

	if c.RSIOversold == 0 {
		c.RSIOversold = 30
	}

	if c.VolumeSMAMultiplier == 0 {
		c.VolumeSMAMultiplier = 1.1
		if c.Variant == VariantMultiTimeframe {
			c.VolumeSMAMultiplier = 1.7
		}
	}

	if c.VolumeRiseMultiplier == 0 {
		c.VolumeRiseMultiplier = 1.2
	}

	if c.ATRMAMultiplier == 0 {
		c.ATRMAMultiplier = 0.5
		if c.Variant == VariantMultiTimeframe {
			c.ATRMAMultiplier = 1.2
		}
	}

	if c.FundingRateBound == 0 {
		c.FundingRateBound = 0.0001
	}

	if c.TakeProfitMultiplier == 0 {
		c.TakeProfitMultiplier = 1.5
		if c.Variant == VariantMeanReversion {
			c.TakeProfitMultiplier = 2.0
		}
	}

	if c.StopLossMultiplier == 0 {
		c.StopLossMultiplier = 2.5
		if c.Variant == VariantMeanReversion {
			c.StopLossMultiplier = 1.0
		}
	}

	if c.ChandelierMultiplier == 0 {
		c.ChandelierMultiplier = 3
	}

	if c.Stage1ExitFraction == 0 {
		c.Stage1ExitFraction = 0.5
	}

	if c.TradeHourEnd == 0 {
		c.TradeHourEnd = 23
	}

	if c.WeekendSizeScale == 0 {
		c.WeekendSizeScale = 0.5
	}

	return c
}

// Validate checks the config against its struct tags.
func (c Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeStrategyConfigError, "invalid strategy config", err)
	}

	return nil
}
