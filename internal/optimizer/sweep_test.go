package optimizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/heliosquant/tradecore/internal/backtest"
	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/strategy"
	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

func baseConfig() backtest.Config {
	return backtest.Config{
		InitialCapital: 10000,
		Strategy: strategy.Config{
			Variant:      strategy.VariantTrendFollowing,
			Symbol:       "BTCUSDT",
			RiskPerTrade: 0.02,
			Commission:   0.001,
		},
	}
}

// sweepBars produces a series with one clean round trip so trials have
// something to score.
func sweepBars() []types.Bar {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bullish := func(rsi float64) map[string]float64 {
		return map[string]float64{
			types.IndicatorEMASlow:   90,
			types.IndicatorEMAMid:    95,
			types.IndicatorEMAFast:   97,
			types.IndicatorRSI:       rsi,
			types.IndicatorVolumeSMA: 800,
			types.IndicatorATR:       2,
			types.IndicatorATRMA:     2,
		}
	}

	bar := func(hour int, close, volume float64, indicators map[string]float64) types.Bar {
		return types.Bar{
			Timestamp:  base.Add(time.Duration(hour) * time.Hour),
			Symbol:     "BTCUSDT",
			Open:       close,
			High:       close,
			Low:        close,
			Close:      close,
			Volume:     volume,
			Indicators: indicators,
		}
	}

	return []types.Bar{
		bar(0, 99, 900, bullish(55)),
		bar(1, 100, 1000, bullish(60)),
		bar(2, 103.5, 1000, map[string]float64{types.IndicatorATR: 2}),
		bar(3, 97.5, 1000, map[string]float64{types.IndicatorATR: 2, types.IndicatorSuperTrendStop: 98}),
		bar(4, 97, 100, nil),
	}
}

func TestGridExpand(t *testing.T) {
	grid := Grid{
		Base:                 baseConfig(),
		RiskPerTrade:         []float64{0.01, 0.02},
		TakeProfitMultiplier: []float64{1.5, 2.0, 2.5},
	}

	configs, err := grid.Expand()
	require.NoError(t, err)
	require.Len(t, configs, 6)

	// Axis-declaration order: risk varies slowest.
	assert.Equal(t, 0.01, configs[0].Strategy.RiskPerTrade)
	assert.Equal(t, 1.5, configs[0].Strategy.TakeProfitMultiplier)
	assert.Equal(t, 0.01, configs[2].Strategy.RiskPerTrade)
	assert.Equal(t, 2.5, configs[2].Strategy.TakeProfitMultiplier)
	assert.Equal(t, 0.02, configs[3].Strategy.RiskPerTrade)
	assert.Equal(t, 1.5, configs[3].Strategy.TakeProfitMultiplier)

	// The base config is untouched by the expansion.
	assert.Equal(t, 0.02, grid.Base.Strategy.RiskPerTrade)
}

func TestGridExpandEmpty(t *testing.T) {
	_, err := Grid{Base: baseConfig()}.Expand()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmptyGrid, errors.GetCode(err))
}

func TestSweepRunsAllTrials(t *testing.T) {
	grid := Grid{
		Base:         baseConfig(),
		RiskPerTrade: []float64{0.01, 0.02, 0.03},
	}

	configs, err := grid.Expand()
	require.NoError(t, err)

	sweep := NewSweep(logger.NewNopLogger(), 2, nil)

	results, err := sweep.Run(context.Background(), configs, sweepBars())
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, result := range results {
		assert.Equal(t, i, result.Index)
		assert.NoError(t, result.Err)
		assert.Equal(t, configs[i].Strategy.RiskPerTrade, result.Config.Strategy.RiskPerTrade)
		assert.Greater(t, result.Stats.TradeResult.NumberOfFills, 0)
	}
}

func TestSweepPenalizesFailingTrial(t *testing.T) {
	bad := baseConfig()
	bad.Strategy.Quorum = 99

	configs := []backtest.Config{baseConfig(), bad}

	sweep := NewSweep(logger.NewNopLogger(), 0, nil)

	results, err := sweep.Run(context.Background(), configs, sweepBars())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.NoError(t, results[0].Err)

	require.Error(t, results[1].Err)
	assert.Equal(t, errors.ErrCodeTrialFailed, errors.GetCode(results[1].Err))
	assert.Equal(t, PenaltyScore, results[1].Score)
}

func TestSweepEmptyConfigs(t *testing.T) {
	sweep := NewSweep(logger.NewNopLogger(), 1, nil)

	_, err := sweep.Run(context.Background(), nil, sweepBars())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeEmptyGrid, errors.GetCode(err))
}

func TestSweepDeterministicOrdering(t *testing.T) {
	grid := Grid{
		Base:               baseConfig(),
		RiskPerTrade:       []float64{0.01, 0.02},
		StopLossMultiplier: []float64{2.0, 2.5},
	}

	configs, err := grid.Expand()
	require.NoError(t, err)

	sweep := NewSweep(logger.NewNopLogger(), 4, nil)

	first, err := sweep.Run(context.Background(), configs, sweepBars())
	require.NoError(t, err)

	second, err := sweep.Run(context.Background(), configs, sweepBars())
	require.NoError(t, err)

	require.Len(t, second, len(first))

	for i := range first {
		assert.Equal(t, first[i].Index, second[i].Index)
		assert.Equal(t, first[i].Score, second[i].Score)
		assert.Equal(t, first[i].Stats.FinalPortfolioValue, second[i].Stats.FinalPortfolioValue)
	}
}

func TestLoadGrid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base:
  initial_capital: 10000
  strategy:
    variant: trend_following
    symbol: BTCUSDT
    risk_per_trade: 0.02
    commission: 0.001
risk_per_trade: [0.01, 0.02]
take_profit_multiplier: [1.5, 2.0]
`), 0644))

	grid, err := LoadGrid(path)
	require.NoError(t, err)

	assert.Equal(t, 10000.0, grid.Base.InitialCapital)
	assert.Equal(t, []float64{0.01, 0.02}, grid.RiskPerTrade)

	configs, err := grid.Expand()
	require.NoError(t, err)
	assert.Len(t, configs, 4)
}

func TestLoadGridRejectsBadBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base:\n  initial_capital: 0\n"), 0644))

	_, err := LoadGrid(path)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidConfiguration, errors.GetCode(err))
}

func TestWriteTrialStats(t *testing.T) {
	grid := Grid{
		Base:         baseConfig(),
		RiskPerTrade: []float64{0.01, 0.02},
	}

	configs, err := grid.Expand()
	require.NoError(t, err)

	sweep := NewSweep(logger.NewNopLogger(), 1, nil)

	results, err := sweep.Run(context.Background(), configs, sweepBars())
	require.NoError(t, err)

	// A failed trial must not reach the stats file.
	results = append(results, TrialResult{
		Index: 2,
		Score: PenaltyScore,
		Err:   errors.New(errors.ErrCodeTrialFailed, "boom"),
	})

	path := filepath.Join(t.TempDir(), "sweep_stats.yaml")
	require.NoError(t, WriteTrialStats(path, Rank(results)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []types.TradeStats
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.Len(t, got, 2)

	for _, stats := range got {
		assert.Equal(t, "BTCUSDT", stats.Symbol)
		assert.Greater(t, stats.TradeResult.NumberOfFills, 0)
	}
}

func TestRank(t *testing.T) {
	results := []TrialResult{
		{Index: 0, Score: 0.5},
		{Index: 1, Score: 1.5},
		{Index: 2, Score: 1.5},
		{Index: 3, Score: PenaltyScore},
	}

	ranked := Rank(results)

	assert.Equal(t, 1, ranked[0].Index)
	// Stable: the tie keeps trial order.
	assert.Equal(t, 2, ranked[1].Index)
	assert.Equal(t, 0, ranked[2].Index)
	assert.Equal(t, 3, ranked[3].Index)

	// The input is not reordered.
	assert.Equal(t, 0, results[0].Index)
}
