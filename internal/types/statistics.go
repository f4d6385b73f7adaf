package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type TradeHoldingTime struct {
	// Minimum holding time of a round trip in seconds
	Min int `yaml:"min"`
	// Maximum holding time of a round trip in seconds
	Max int `yaml:"max"`
	// Average holding time of a round trip in seconds
	Avg int `yaml:"avg"`
}

type TradePnl struct {
	// Realized PnL in quote currency, summed over all sell fills.
	RealizedPnL float64 `yaml:"realized_pnl"`
	// Maximum loss. Minimum per-exit net pnl percentage.
	MaximumLossPct float64 `yaml:"maximum_loss_pct"`
	// Maximum profit. Maximum per-exit net pnl percentage.
	MaximumProfitPct float64 `yaml:"maximum_profit_pct"`
}

type TradeResult struct {
	// Count of all fills, buys and sells.
	NumberOfFills int `yaml:"number_of_fills"`
	// Count of exit fills with positive net pnl.
	NumberOfWinningExits int `yaml:"number_of_winning_exits"`
	// Count of exit fills with negative net pnl.
	NumberOfLosingExits int `yaml:"number_of_losing_exits"`
	// Win rate over exit fills, 0-1.
	WinRate float64 `yaml:"win_rate"`
	// Maximum drawdown of the portfolio-after-fill series, 0-1.
	MaxDrawdown float64 `yaml:"max_drawdown"`
	// Sharpe ratio over per-exit net pnl percentages. Zero when undefined.
	SharpeRatio float64 `yaml:"sharpe_ratio"`
}

// TradeStats aggregates a finished backtest run for the optimizer and
// reporting layers.
type TradeStats struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol of the trading pair.
	Symbol string `yaml:"symbol"`
	// Strategy variant that produced the trades.
	Strategy string `yaml:"strategy"`
	// Result of all trades.
	TradeResult TradeResult `yaml:"trade_result"`
	// Total commission paid.
	TotalCommission float64 `yaml:"total_commission"`
	// Holding time of all round trips.
	TradeHoldingTime TradeHoldingTime `yaml:"trade_holding_time"`
	// PnL of all trades.
	TradePnl TradePnl `yaml:"trade_pnl"`
	// Portfolio value when the bar sequence was exhausted.
	FinalPortfolioValue float64 `yaml:"final_portfolio_value"`
}

// WriteTradeStats writes run statistics to a YAML file.
func WriteTradeStats(path string, stats []TradeStats) error {
	// Marshal the struct to YAML
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal trade stats to YAML: %w", err)
	}

	// Write the YAML data to the file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write trade stats to file: %w", err)
	}

	return nil
}
