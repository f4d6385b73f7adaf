package optimizer

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/heliosquant/tradecore/internal/backtest"
	"github.com/heliosquant/tradecore/pkg/errors"
)

// Grid is an explicit parameter grid over a base config. Every non-empty
// axis multiplies the trial count; an empty axis keeps the base value.
type Grid struct {
	Base backtest.Config `yaml:"base"`

	RiskPerTrade         []float64 `yaml:"risk_per_trade"`
	Quorum               []int     `yaml:"quorum"`
	TakeProfitMultiplier []float64 `yaml:"take_profit_multiplier"`
	StopLossMultiplier   []float64 `yaml:"stop_loss_multiplier"`
	ChandelierMultiplier []float64 `yaml:"chandelier_multiplier"`
}

// LoadGrid reads a YAML parameter grid.
func LoadGrid(path string) (Grid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Grid{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read grid %s", path)
	}

	var grid Grid
	if err := yaml.Unmarshal(data, &grid); err != nil {
		return Grid{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse grid", err)
	}

	if err := grid.Base.Validate(); err != nil {
		return Grid{}, err
	}

	return grid, nil
}

// Expand produces the cartesian product of all axes, in axis-declaration
// order so trial indices are stable across runs.
func (g Grid) Expand() ([]backtest.Config, error) {
	configs := []backtest.Config{g.Base}

	if len(g.RiskPerTrade) > 0 {
		configs = expand(configs, g.RiskPerTrade, func(cfg *backtest.Config, v float64) {
			cfg.Strategy.RiskPerTrade = v
		})
	}

	if len(g.Quorum) > 0 {
		configs = expand(configs, g.Quorum, func(cfg *backtest.Config, v int) {
			cfg.Strategy.Quorum = v
		})
	}

	if len(g.TakeProfitMultiplier) > 0 {
		configs = expand(configs, g.TakeProfitMultiplier, func(cfg *backtest.Config, v float64) {
			cfg.Strategy.TakeProfitMultiplier = v
		})
	}

	if len(g.StopLossMultiplier) > 0 {
		configs = expand(configs, g.StopLossMultiplier, func(cfg *backtest.Config, v float64) {
			cfg.Strategy.StopLossMultiplier = v
		})
	}

	if len(g.ChandelierMultiplier) > 0 {
		configs = expand(configs, g.ChandelierMultiplier, func(cfg *backtest.Config, v float64) {
			cfg.Strategy.ChandelierMultiplier = v
		})
	}

	if len(configs) == 1 && gridIsEmpty(g) {
		return nil, errors.New(errors.ErrCodeEmptyGrid, "grid declares no axes")
	}

	return configs, nil
}

func gridIsEmpty(g Grid) bool {
	return len(g.RiskPerTrade) == 0 &&
		len(g.Quorum) == 0 &&
		len(g.TakeProfitMultiplier) == 0 &&
		len(g.StopLossMultiplier) == 0 &&
		len(g.ChandelierMultiplier) == 0
}

func expand[T any](configs []backtest.Config, values []T, set func(*backtest.Config, T)) []backtest.Config {
	out := make([]backtest.Config, 0, len(configs)*len(values))

	for _, cfg := range configs {
		for _, v := range values {
			next := cfg
			set(&next, v)
			out = append(out, next)
		}
	}

	return out
}
