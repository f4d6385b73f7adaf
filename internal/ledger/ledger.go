// Package ledger keeps the authoritative trade and cash records of a run.
// Fills arrive in bar order, PnL is attributed to each exit against the
// entry it closes, and the portfolio series derived here feeds the final
// statistics.
package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

// sizeTolerance absorbs float noise when a fractional exit size is compared
// against the remaining entry size.
var sizeTolerance = decimal.New(1, -9)

// openLot is the cost basis an exit settles against. The entry commission is
// prorated over partial exits by exited size.
type openLot struct {
	entryTime       time.Time
	entryPrice      decimal.Decimal
	entrySize       decimal.Decimal
	remaining       decimal.Decimal
	entryCommission decimal.Decimal
}

// Ledger records fills and maintains the cash position. It is single-run,
// single-symbol state; the optimizer builds one per trial.
type Ledger struct {
	log *logger.Logger

	commissionRate decimal.Decimal
	initialCapital decimal.Decimal
	portfolio      decimal.Decimal

	trades     []types.Trade
	equity     []float64
	equityTime []time.Time

	lot   *openLot
	fills int

	realizedPnL     decimal.Decimal
	totalCommission decimal.Decimal
	holdingTimes    []time.Duration
}

// NewLedger returns a ledger holding the initial capital in cash.
func NewLedger(log *logger.Logger, initialCapital, commissionRate float64) *Ledger {
	return &Ledger{
		log:            log,
		commissionRate: decimal.NewFromFloat(commissionRate),
		initialCapital: decimal.NewFromFloat(initialCapital),
		portfolio:      decimal.NewFromFloat(initialCapital),
	}
}

// fillID derives the fill identifier from the symbol, the fill timestamp and
// the fill ordinal, so identical runs emit identical trade records.
func (l *Ledger) fillID(ts time.Time, symbol string) string {
	id := uuid.NewSHA1(uuid.NameSpaceOID,
		[]byte(fmt.Sprintf("%s|%d|%d", symbol, ts.UnixNano(), l.fills)))
	l.fills++

	return id.String()
}

// PortfolioValue returns the current cash position.
func (l *Ledger) PortfolioValue() float64 {
	return l.portfolio.InexactFloat64()
}

// Trades returns the recorded fills in execution order.
func (l *Ledger) Trades() []types.Trade {
	return l.trades
}

// EquityCurve returns the portfolio value after every fill with the fill
// timestamps.
func (l *Ledger) EquityCurve() ([]float64, []time.Time) {
	return l.equity, l.equityTime
}

// RecordEntry books a buy fill. Cash decreases by notional plus commission
// and the lot becomes the cost basis for subsequent exits.
func (l *Ledger) RecordEntry(ts time.Time, symbol string, price, size float64) (types.Trade, error) {
	if l.lot != nil {
		return types.Trade{}, errors.Newf(errors.ErrCodePositionNotFlat,
			"entry fill for %s while a lot is still open", symbol)
	}

	if price <= 0 || size <= 0 {
		return types.Trade{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"entry fill with price %f size %f", price, size)
	}

	priceDec := decimal.NewFromFloat(price)
	sizeDec := decimal.NewFromFloat(size)
	notional := priceDec.Mul(sizeDec)
	commission := notional.Mul(l.commissionRate)

	l.portfolio = l.portfolio.Sub(notional).Sub(commission)
	l.totalCommission = l.totalCommission.Add(commission)

	l.lot = &openLot{
		entryTime:       ts,
		entryPrice:      priceDec,
		entrySize:       sizeDec,
		remaining:       sizeDec,
		entryCommission: commission,
	}

	// The buy itself has no realized gain; it records the entry cost.
	commissionPct := decimal.Zero
	if !notional.IsZero() {
		commissionPct = commission.Div(notional).Mul(decimal.NewFromInt(100))
	}

	trade := types.Trade{
		ID:             l.fillID(ts, symbol),
		Timestamp:      ts,
		Symbol:         symbol,
		Side:           types.SideBuy,
		Price:          price,
		Size:           size,
		Commission:     commission.InexactFloat64(),
		PortfolioValue: l.portfolio.InexactFloat64(),
		CommissionPct:  commissionPct.InexactFloat64(),
		NetPnlPct:      commissionPct.Neg().InexactFloat64(),
	}

	l.append(trade)

	return trade, nil
}

// RecordExit books a sell fill against the open lot. Cash increases by
// notional minus commission. The entry commission is prorated by the exited
// fraction of the original entry size so a partial and a final exit together
// account for exactly one entry fee.
func (l *Ledger) RecordExit(ts time.Time, symbol string, price, size float64, reason types.ExitReason) (types.Trade, error) {
	if l.lot == nil {
		return types.Trade{}, errors.Newf(errors.ErrCodePositionNotOpen,
			"exit fill for %s with no open lot", symbol)
	}

	if price <= 0 || size <= 0 {
		return types.Trade{}, errors.Newf(errors.ErrCodeInvalidParameter,
			"exit fill with price %f size %f", price, size)
	}

	sizeDec := decimal.NewFromFloat(size)
	if sizeDec.Sub(l.lot.remaining).GreaterThan(sizeTolerance) {
		return types.Trade{}, errors.Newf(errors.ErrCodeSizeMismatch,
			"exit size %s exceeds remaining %s", sizeDec, l.lot.remaining)
	}

	// Clamp to the remainder so float fractions cannot leave dust.
	if sizeDec.GreaterThan(l.lot.remaining) {
		sizeDec = l.lot.remaining
	}

	priceDec := decimal.NewFromFloat(price)
	notional := priceDec.Mul(sizeDec)
	exitCommission := notional.Mul(l.commissionRate)

	l.portfolio = l.portfolio.Add(notional).Sub(exitCommission)
	l.totalCommission = l.totalCommission.Add(exitCommission)

	hundred := decimal.NewFromInt(100)
	rawPnlPct := priceDec.Div(l.lot.entryPrice).Sub(decimal.NewFromInt(1)).Mul(hundred)

	proratedEntry := l.lot.entryCommission.Mul(sizeDec).Div(l.lot.entrySize)
	entryNotional := l.lot.entryPrice.Mul(sizeDec)
	commissionPct := proratedEntry.Add(exitCommission).Div(entryNotional).Mul(hundred)

	l.realizedPnL = l.realizedPnL.Add(notional.Sub(entryNotional).Sub(proratedEntry).Sub(exitCommission))

	l.lot.remaining = l.lot.remaining.Sub(sizeDec)
	if l.lot.remaining.LessThanOrEqual(sizeTolerance) {
		l.holdingTimes = append(l.holdingTimes, ts.Sub(l.lot.entryTime))
		l.lot = nil
	}

	trade := types.Trade{
		ID:             l.fillID(ts, symbol),
		Timestamp:      ts,
		Symbol:         symbol,
		Side:           types.SideSell,
		Price:          price,
		Size:           sizeDec.InexactFloat64(),
		Commission:     exitCommission.InexactFloat64(),
		PortfolioValue: l.portfolio.InexactFloat64(),
		Reason:         reason,
		RawPnlPct:      rawPnlPct.InexactFloat64(),
		CommissionPct:  commissionPct.InexactFloat64(),
		NetPnlPct:      rawPnlPct.Sub(commissionPct).InexactFloat64(),
	}

	l.append(trade)

	l.log.Debug("exit recorded",
		zap.String("symbol", symbol),
		zap.String("reason", string(reason)),
		zap.Float64("net_pnl_pct", trade.NetPnlPct),
		zap.Float64("portfolio", trade.PortfolioValue),
	)

	return trade, nil
}

func (l *Ledger) append(trade types.Trade) {
	l.trades = append(l.trades, trade)
	l.equity = append(l.equity, trade.PortfolioValue)
	l.equityTime = append(l.equityTime, trade.Timestamp)
}

// Stats aggregates the run. Win rate and the Sharpe ratio are computed over
// per-exit net returns; drawdown over the portfolio-after-fill series seeded
// with the initial capital.
func (l *Ledger) Stats(runID, symbol, strategy string, at time.Time) types.TradeStats {
	stats := types.TradeStats{
		ID:                  runID,
		Timestamp:           at,
		Symbol:              symbol,
		Strategy:            strategy,
		FinalPortfolioValue: l.portfolio.InexactFloat64(),
	}

	var exitReturns []float64

	for _, trade := range l.trades {
		if !trade.IsRoundTripExit() {
			continue
		}

		exitReturns = append(exitReturns, trade.NetPnlPct)

		if trade.NetPnlPct > 0 {
			stats.TradeResult.NumberOfWinningExits++
		} else if trade.NetPnlPct < 0 {
			stats.TradeResult.NumberOfLosingExits++
		}
	}

	stats.TradeResult.NumberOfFills = len(l.trades)
	stats.TotalCommission = l.totalCommission.InexactFloat64()
	stats.TradePnl.RealizedPnL = l.realizedPnL.InexactFloat64()

	if len(exitReturns) > 0 {
		stats.TradeResult.WinRate = float64(stats.TradeResult.NumberOfWinningExits) / float64(len(exitReturns))
		stats.TradePnl.MaximumLossPct = minFloat(exitReturns)
		stats.TradePnl.MaximumProfitPct = maxFloat(exitReturns)
		stats.TradeResult.SharpeRatio = sharpe(exitReturns)
	}

	stats.TradeResult.MaxDrawdown = l.maxDrawdown()
	stats.TradeHoldingTime = l.holdingTime()

	return stats
}

// maxDrawdown is the largest peak-to-trough fraction of the equity series,
// including the starting capital as the first point.
func (l *Ledger) maxDrawdown() float64 {
	peak := l.initialCapital.InexactFloat64()
	maxDD := 0.0

	for _, value := range l.equity {
		if value > peak {
			peak = value
		}

		if peak > 0 {
			dd := (peak - value) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}

	return maxDD
}

func (l *Ledger) holdingTime() types.TradeHoldingTime {
	if len(l.holdingTimes) == 0 {
		return types.TradeHoldingTime{}
	}

	minHold := l.holdingTimes[0]
	maxHold := l.holdingTimes[0]
	total := time.Duration(0)

	for _, h := range l.holdingTimes {
		if h < minHold {
			minHold = h
		}

		if h > maxHold {
			maxHold = h
		}

		total += h
	}

	return types.TradeHoldingTime{
		Min: int(minHold.Seconds()),
		Max: int(maxHold.Seconds()),
		Avg: int((total / time.Duration(len(l.holdingTimes))).Seconds()),
	}
}

// sharpe is mean over standard deviation of the per-exit net returns, zero
// when fewer than two samples exist or the returns never vary.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	if variance == 0 {
		return 0
	}

	return mean / math.Sqrt(variance)
}

func minFloat(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}

	return m
}

func maxFloat(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}

	return m
}
