package feed

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

func makeBars(start time.Time, n int) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Symbol:    "BTCUSDT",
			Close:     100 + float64(i),
		}
	}

	return bars
}

func TestSliceSourceRejectsUnorderedBars(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := makeBars(start, 3)
	bars[2].Timestamp = bars[1].Timestamp

	_, err := NewSliceSource(bars)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidBarOrder, errors.GetCode(err))

	bars[2].Timestamp = bars[0].Timestamp
	_, err = NewSliceSource(bars)
	require.Error(t, err)
}

func TestSliceSourceCount(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source, err := NewSliceSource(makeBars(start, 10))
	require.NoError(t, err)

	count, err := source.Count(optional.None[time.Time](), optional.None[time.Time]())
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	// Bounds are inclusive on both ends.
	count, err = source.Count(optional.Some(start.Add(2*time.Hour)), optional.Some(start.Add(5*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestSliceSourceReadAll(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source, err := NewSliceSource(makeBars(start, 5))
	require.NoError(t, err)

	var got []types.Bar

	for bar, err := range source.ReadAll(optional.Some(start.Add(time.Hour)), optional.None[time.Time]()) {
		require.NoError(t, err)

		got = append(got, bar)
	}

	require.Len(t, got, 4)
	assert.Equal(t, 101.0, got[0].Close)
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestSliceSourceReadAllStopsEarly(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	source, err := NewSliceSource(makeBars(start, 100))
	require.NoError(t, err)

	seen := 0
	source.ReadAll(optional.None[time.Time](), optional.None[time.Time]())(func(bar types.Bar, err error) bool {
		seen++

		return seen < 3
	})

	assert.Equal(t, 3, seen)
}
