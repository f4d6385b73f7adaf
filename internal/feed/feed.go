// Package feed supplies the ordered bar stream a backtest consumes. Sources
// deliver bars strictly ascending by timestamp; the engine treats any
// violation as fatal for the run.
package feed

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

// BarSource is an ordered stream of bars.
type BarSource interface {
	// Count returns the number of bars in the given time range.
	Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error)

	// ReadAll returns an iterator over bars in ascending time order within
	// the given range. Iteration stops at the first yielded error.
	ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool)

	// Close releases the underlying resources.
	Close() error
}

// SliceSource serves bars from memory. Used by tests and the optimizer,
// which replays the same loaded series across many trials.
type SliceSource struct {
	bars []types.Bar
}

// NewSliceSource validates ordering once and wraps the bars. Bars must be
// strictly ascending by timestamp.
func NewSliceSource(bars []types.Bar) (*SliceSource, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, errors.Newf(errors.ErrCodeInvalidBarOrder,
				"bar %d at %s does not advance past %s", i, bars[i].Timestamp, bars[i-1].Timestamp)
		}
	}

	return &SliceSource{bars: bars}, nil
}

// Count implements BarSource.
func (s *SliceSource) Count(start optional.Option[time.Time], end optional.Option[time.Time]) (int, error) {
	count := 0

	for _, bar := range s.bars {
		if inRange(bar.Timestamp, start, end) {
			count++
		}
	}

	return count, nil
}

// ReadAll implements BarSource.
func (s *SliceSource) ReadAll(start optional.Option[time.Time], end optional.Option[time.Time]) func(yield func(types.Bar, error) bool) {
	return func(yield func(types.Bar, error) bool) {
		for _, bar := range s.bars {
			if !inRange(bar.Timestamp, start, end) {
				continue
			}

			if !yield(bar, nil) {
				return
			}
		}
	}
}

// Close implements BarSource.
func (s *SliceSource) Close() error {
	return nil
}

func inRange(ts time.Time, start, end optional.Option[time.Time]) bool {
	if start.IsSome() && ts.Before(start.Unwrap()) {
		return false
	}

	if end.IsSome() && ts.After(end.Unwrap()) {
		return false
	}

	return true
}
