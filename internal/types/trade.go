package types

import (
	"time"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ExitReason explains why a sell fill happened. Reasons are mutually
// exclusive per evaluation: a single bar produces at most one of them.
type ExitReason string

const (
	ExitReasonTakeProfit       ExitReason = "take_profit"
	ExitReasonTakeProfitStage1 ExitReason = "take_profit_stage1"
	ExitReasonTrailingStop     ExitReason = "trailing_stop"
	ExitReasonStopLoss         ExitReason = "stop_loss"
)

// Trade is one executed fill. The ordered sequence of trades is the ledger;
// records are immutable once appended.
type Trade struct {
	ID        string    `csv:"id" yaml:"id"`
	Timestamp time.Time `csv:"timestamp" yaml:"timestamp"`
	Symbol    string    `csv:"symbol" yaml:"symbol"`
	Side      Side      `csv:"side" yaml:"side"`
	Price     float64   `csv:"price" yaml:"price"`
	Size      float64   `csv:"size" yaml:"size"`
	// Commission is the absolute fee paid for this fill, in quote currency.
	Commission float64 `csv:"commission" yaml:"commission"`
	// PortfolioValue is the portfolio value after this fill was applied.
	PortfolioValue float64 `csv:"portfolio_value" yaml:"portfolio_value"`
	// Reason is empty for buy fills.
	Reason ExitReason `csv:"reason" yaml:"reason,omitempty"`
	// RawPnlPct is the percentage return before commissions. Zero for buys.
	RawPnlPct float64 `csv:"raw_pnl_pct" yaml:"raw_pnl_pct"`
	// CommissionPct is the commission cost as a percentage of the entry
	// notional for the exited size.
	CommissionPct float64 `csv:"commission_pct" yaml:"commission_pct"`
	// NetPnlPct is RawPnlPct - CommissionPct. A buy fill records the cost of
	// entry as -CommissionPct, not yet offset by any gain.
	NetPnlPct float64 `csv:"net_pnl_pct" yaml:"net_pnl_pct"`
}

// IsRoundTripExit reports whether this fill closes size out of a position.
func (t Trade) IsRoundTripExit() bool {
	return t.Side == SideSell
}
