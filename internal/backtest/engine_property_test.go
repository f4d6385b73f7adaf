package backtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosquant/tradecore/internal/feed"
	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/strategy"
	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/mocks"
)

// TestInvariantsOnGeneratedSeries drives the whole stack over a long
// generated series and checks the accounting invariants that must hold for
// any input whatsoever.
func TestInvariantsOnGeneratedSeries(t *testing.T) {
	generator := mocks.NewBarGenerator(42)
	config := mocks.DefaultConfig()
	config.Symbol = "BTCUSDT"
	config.Count = 5000
	config.Trend = 0.5

	bars := generator.Generate(config)

	source, err := feed.NewSliceSource(bars)
	require.NoError(t, err)

	engine, err := NewEngine(Config{
		InitialCapital: 10000,
		Strategy: strategy.Config{
			Variant:      strategy.VariantTrendFollowing,
			Symbol:       "BTCUSDT",
			RiskPerTrade: 0.02,
			Commission:   0.001,
		},
	}, logger.NewNopLogger())
	require.NoError(t, err)

	result, err := engine.Run(context.Background(), source)
	require.NoError(t, err)

	// The series should actually produce activity; otherwise the
	// invariants below hold vacuously.
	require.NotEmpty(t, result.Trades)

	var (
		outstanding float64
		cash        = 10000.0
	)

	for _, trade := range result.Trades {
		switch trade.Side {
		case types.SideBuy:
			// At most one position: a buy only happens flat.
			assert.InDelta(t, 0.0, outstanding, 1e-9, "buy at %s while holding", trade.Timestamp)

			outstanding += trade.Size
			cash -= trade.Price*trade.Size + trade.Commission
		case types.SideSell:
			// Size conservation: never sell more than held.
			assert.LessOrEqual(t, trade.Size, outstanding+1e-9)

			outstanding -= trade.Size
			cash += trade.Price*trade.Size - trade.Commission
		}

		// The ledger's running portfolio equals the replayed cash flow.
		assert.InDelta(t, cash, trade.PortfolioValue, 1e-6)
	}

	if result.OpenPosition.IsSome() {
		assert.InDelta(t, result.OpenPosition.Unwrap().Size, outstanding, 1e-9)
	} else {
		assert.InDelta(t, 0.0, outstanding, 1e-9)
	}

	assert.InDelta(t, cash, result.FinalPortfolioValue, 1e-6)

	// Bit-for-bit determinism over the same generated input.
	source2, err := feed.NewSliceSource(bars)
	require.NoError(t, err)

	engine2, err := NewEngine(Config{
		InitialCapital: 10000,
		Strategy: strategy.Config{
			Variant:      strategy.VariantTrendFollowing,
			Symbol:       "BTCUSDT",
			RiskPerTrade: 0.02,
			Commission:   0.001,
		},
	}, logger.NewNopLogger())
	require.NoError(t, err)

	rerun, err := engine2.Run(context.Background(), source2)
	require.NoError(t, err)
	assert.Equal(t, result.Trades, rerun.Trades)
	assert.Equal(t, result.FinalPortfolioValue, rerun.FinalPortfolioValue)
}
