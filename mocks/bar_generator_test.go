package mocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosquant/tradecore/internal/types"
)

func TestGenerateIsReproducible(t *testing.T) {
	config := DefaultConfig()
	config.Count = 500

	first := NewBarGenerator(42).Generate(config)
	second := NewBarGenerator(42).Generate(config)

	require.Len(t, second, len(first))

	for i := range first {
		assert.Equal(t, first[i].Close, second[i].Close)
		assert.Equal(t, first[i].Volume, second[i].Volume)
	}
}

func TestGenerateOrderingAndSanity(t *testing.T) {
	config := DefaultConfig()
	config.Count = 300

	bars := NewBarGenerator(7).Generate(config)
	require.Len(t, bars, 300)

	for i, bar := range bars {
		assert.Greater(t, bar.Close, 0.0)
		assert.GreaterOrEqual(t, bar.High, bar.Close)
		assert.LessOrEqual(t, bar.Low, bar.Close)

		if i > 0 {
			assert.True(t, bar.Timestamp.After(bars[i-1].Timestamp))
		}
	}
}

func TestGenerateAnnotatesAfterWarmup(t *testing.T) {
	config := DefaultConfig()
	config.Count = 200

	bars := NewBarGenerator(1).Generate(config)

	// Leading bars carry no indicators.
	_, ok := bars[10].Indicator(types.IndicatorRSI)
	assert.False(t, ok)

	late := bars[150]
	for _, key := range []string{
		types.IndicatorEMAFast, types.IndicatorEMAMid, types.IndicatorEMASlow,
		types.IndicatorRSI, types.IndicatorATR, types.IndicatorATRMA,
		types.IndicatorVolumeSMA,
	} {
		value, ok := late.Indicator(key)
		require.True(t, ok, key)
		assert.False(t, value != value, key) // not NaN
	}

	rsi, _ := late.Indicator(types.IndicatorRSI)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)

	atr, _ := late.Indicator(types.IndicatorATR)
	assert.Greater(t, atr, 0.0)
}
