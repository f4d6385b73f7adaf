package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/heliosquant/tradecore/internal/feed"
	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/strategy"
	"github.com/heliosquant/tradecore/internal/types"
)

type EngineSuite struct {
	suite.Suite
	cfg  Config
	base time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.cfg = Config{
		InitialCapital: 10000,
		Strategy: strategy.Config{
			Variant:      strategy.VariantTrendFollowing,
			Symbol:       "BTCUSDT",
			RiskPerTrade: 0.02,
			Commission:   0.001,
		},
	}
	// A Monday.
	s.base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

func bullish(rsi float64) map[string]float64 {
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

func (s *EngineSuite) bar(hour int, close, volume float64, indicators map[string]float64) types.Bar {
	return types.Bar{
		Timestamp:  s.base.Add(time.Duration(hour) * time.Hour),
		Symbol:     "BTCUSDT",
		Open:       close,
		High:       close,
		Low:        close,
		Close:      close,
		Volume:     volume,
		Indicators: indicators,
	}
}

// lifecycleBars drives one full round trip: entry at 100, stage-1 exit at
// 103.5, trailing ratchet to 98, trailing exit at 97.5.
func (s *EngineSuite) lifecycleBars() []types.Bar {
	trailing := map[string]float64{
		types.IndicatorATR:            2,
		types.IndicatorSuperTrendStop: 95,
	}

	return []types.Bar{
		s.bar(0, 99, 900, bullish(55)),
		s.bar(1, 100, 1000, bullish(60)),
		s.bar(2, 103.5, 1000, map[string]float64{types.IndicatorATR: 2}),
		s.bar(3, 104, 1000, trailing),
		s.bar(4, 97.5, 1000, trailing),
		s.bar(5, 97, 100, nil),
	}
}

func (s *EngineSuite) run(bars []types.Bar) Result {
	source, err := feed.NewSliceSource(bars)
	s.Require().NoError(err)

	engine, err := NewEngine(s.cfg, logger.NewNopLogger())
	s.Require().NoError(err)

	result, err := engine.Run(context.Background(), source)
	s.Require().NoError(err)

	return result
}

func (s *EngineSuite) TestFullLifecycle() {
	result := s.run(s.lifecycleBars())

	s.Require().Len(result.Trades, 3)

	entry := result.Trades[0]
	s.Equal(types.SideBuy, entry.Side)
	s.Equal(100.0, entry.Price)
	// 0.02*10000/5 = 40 raw, shrunk by the commission rate.
	s.InDelta(39.96, entry.Size, 1e-9)

	partial := result.Trades[1]
	s.Equal(types.SideSell, partial.Side)
	s.Equal(types.ExitReasonTakeProfitStage1, partial.Reason)
	s.Equal(103.5, partial.Price)
	s.InDelta(entry.Size/2, partial.Size, 1e-9)

	final := result.Trades[2]
	s.Equal(types.ExitReasonTrailingStop, final.Reason)
	s.Equal(97.5, final.Price)

	// Size conservation: exits sum to the entry size.
	s.InDelta(entry.Size, partial.Size+final.Size, 1e-9)

	s.True(result.OpenPosition.IsNone())
	s.Equal(3, result.Stats.TradeResult.NumberOfFills)
	s.InDelta(result.FinalPortfolioValue, result.Stats.FinalPortfolioValue, 1e-9)
}

func (s *EngineSuite) TestEntryThenImmediateStopLoss() {
	bars := []types.Bar{
		s.bar(0, 99, 900, bullish(55)),
		s.bar(1, 100, 1000, bullish(60)),
		s.bar(2, 94, 1000, map[string]float64{types.IndicatorATR: 2}),
	}

	result := s.run(bars)

	s.Require().Len(result.Trades, 2)
	s.Equal(types.SideBuy, result.Trades[0].Side)
	s.Equal(types.SideSell, result.Trades[1].Side)
	s.Equal(types.ExitReasonStopLoss, result.Trades[1].Reason)

	// Both commissions hit the portfolio.
	buyNotional := result.Trades[0].Price * result.Trades[0].Size
	sellNotional := result.Trades[1].Price * result.Trades[1].Size
	expected := 10000 - buyNotional - result.Trades[0].Commission + sellNotional - result.Trades[1].Commission
	s.InDelta(expected, result.FinalPortfolioValue, 1e-6)
	s.Greater(result.Trades[0].Commission, 0.0)
	s.Greater(result.Trades[1].Commission, 0.0)
}

func (s *EngineSuite) TestDeterminism() {
	first := s.run(s.lifecycleBars())
	second := s.run(s.lifecycleBars())

	// Whole records, fill IDs included.
	s.Equal(first.Trades, second.Trades)
	s.Equal(first.EquityCurve, second.EquityCurve)
	s.Equal(first.FinalPortfolioValue, second.FinalPortfolioValue)
}

func (s *EngineSuite) TestNoLookahead() {
	// Truncating the future must not change any trade already made.
	bars := s.lifecycleBars()

	full := s.run(bars)
	truncated := s.run(bars[:3])

	s.Require().Len(truncated.Trades, 2)

	for i, trade := range truncated.Trades {
		s.Equal(full.Trades[i].Price, trade.Price)
		s.Equal(full.Trades[i].Size, trade.Size)
		s.Equal(full.Trades[i].Side, trade.Side)
	}
}

func (s *EngineSuite) TestOpenPositionReportedNotLiquidated() {
	// Cut the series right after the entry bar.
	result := s.run(s.lifecycleBars()[:2])

	s.Require().Len(result.Trades, 1)
	s.Require().True(result.OpenPosition.IsSome())

	pos := result.OpenPosition.Unwrap()
	s.Equal(100.0, pos.EntryPrice)
	s.Equal(types.StageOpen, pos.Stage)
}

func (s *EngineSuite) TestAtMostOnePosition() {
	// Every bar qualifies for entry, but only one position may exist.
	bars := []types.Bar{
		s.bar(0, 99, 1000, bullish(55)),
		s.bar(1, 100, 1000, bullish(60)),
		s.bar(2, 100.5, 1000, bullish(61)),
		s.bar(3, 101, 1000, bullish(62)),
	}

	result := s.run(bars)

	buys := 0
	for _, trade := range result.Trades {
		if trade.Side == types.SideBuy {
			buys++
		}
	}

	s.Equal(1, buys)
	s.True(result.OpenPosition.IsSome())
}

func (s *EngineSuite) TestNoTradesOnQuietSeries() {
	bars := []types.Bar{
		s.bar(0, 99, 100, nil),
		s.bar(1, 100, 100, nil),
		s.bar(2, 101, 100, nil),
	}

	result := s.run(bars)

	s.Empty(result.Trades)
	s.Equal(10000.0, result.FinalPortfolioValue)
	s.True(result.OpenPosition.IsNone())
}

func (s *EngineSuite) TestProgressCallback() {
	bars := s.lifecycleBars()

	source, err := feed.NewSliceSource(bars)
	s.Require().NoError(err)

	engine, err := NewEngine(s.cfg, logger.NewNopLogger())
	s.Require().NoError(err)

	var seen []int
	engine.SetOnBarCallback(func(index, total int, bar types.Bar) {
		s.Equal(len(bars), total)

		seen = append(seen, index)
	})

	_, err = engine.Run(context.Background(), source)
	s.Require().NoError(err)
	s.Equal([]int{0, 1, 2, 3, 4, 5}, seen)
}

func (s *EngineSuite) TestContextCancellation() {
	source, err := feed.NewSliceSource(s.lifecycleBars())
	s.Require().NoError(err)

	engine, err := NewEngine(s.cfg, logger.NewNopLogger())
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.Run(ctx, source)
	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)
}

func (s *EngineSuite) TestTimeWindowBoundsRun() {
	bars := s.lifecycleBars()
	s.cfg.StartTime = optional.Some(bars[1].Timestamp)
	s.cfg.EndTime = optional.Some(bars[4].Timestamp)

	result := s.run(bars)

	// The entry bar is now the first bar, so it only serves as prev; the
	// quiet final bar is excluded too.
	for _, trade := range result.Trades {
		s.False(trade.Timestamp.Before(bars[1].Timestamp))
		s.False(trade.Timestamp.After(bars[4].Timestamp))
	}
}

func (s *EngineSuite) TestRejectsBadConfig() {
	_, err := NewEngine(Config{InitialCapital: 0, Strategy: s.cfg.Strategy}, logger.NewNopLogger())
	s.Require().Error(err)

	_, err = NewEngine(Config{
		InitialCapital: 10000,
		Strategy:       strategy.Config{Variant: "nope", Symbol: "BTCUSDT", RiskPerTrade: 0.02},
	}, logger.NewNopLogger())
	s.Require().Error(err)
}
