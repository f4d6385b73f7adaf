package types

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBarIndicator(t *testing.T) {
	bar := Bar{
		Indicators: map[string]float64{
			IndicatorRSI: 55.5,
			IndicatorATR: math.NaN(),
		},
	}

	value, ok := bar.Indicator(IndicatorRSI)
	assert.True(t, ok)
	assert.Equal(t, 55.5, value)

	// NaN reads back as missing.
	_, ok = bar.Indicator(IndicatorATR)
	assert.False(t, ok)

	_, ok = bar.Indicator(IndicatorEMAFast)
	assert.False(t, ok)

	// A nil map behaves like an empty one.
	_, ok = Bar{}.Indicator(IndicatorRSI)
	assert.False(t, ok)
}

func TestTradeIsRoundTripExit(t *testing.T) {
	assert.False(t, Trade{Side: SideBuy}.IsRoundTripExit())
	assert.True(t, Trade{Side: SideSell}.IsRoundTripExit())
}

func TestWriteTradeStats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.yaml")

	stats := []TradeStats{
		{
			ID:        "run-1",
			Timestamp: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			Symbol:    "BTCUSDT",
			Strategy:  "trend_following",
			TradeResult: TradeResult{
				NumberOfFills:        3,
				NumberOfWinningExits: 1,
				NumberOfLosingExits:  1,
				WinRate:              0.5,
			},
			FinalPortfolioValue: 10002.4875,
		},
	}

	require.NoError(t, WriteTradeStats(path, stats))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got []TradeStats
	require.NoError(t, yaml.Unmarshal(data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, "run-1", got[0].ID)
	assert.Equal(t, 0.5, got[0].TradeResult.WinRate)
	assert.Equal(t, 10002.4875, got[0].FinalPortfolioValue)
}
