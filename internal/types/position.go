package types

import (
	"time"
)

// PositionStage is the lifecycle tag of a position. Transitions are owned by
// the position tracker; nothing else mutates it.
type PositionStage string

const (
	// StageFlat means no position is held. Initial state; a new open may
	// follow a close.
	StageFlat PositionStage = "flat"
	// StageOpen means the full entry size is held.
	StageOpen PositionStage = "open"
	// StageOneDone means the first take-profit fired and a partial exit was
	// executed; the remainder is managed by the trailing stop.
	StageOneDone PositionStage = "stage1_done"
	// StageClosed means the position has been fully exited.
	StageClosed PositionStage = "closed"
)

// Position is the authoritative state of at most one open holding per
// symbol. It is created on a qualifying entry signal, mutated in place as
// price and indicators evolve, and discarded once Stage reaches StageClosed.
type Position struct {
	Symbol     string        `csv:"symbol" yaml:"symbol"`
	EntryPrice float64       `csv:"entry_price" yaml:"entry_price"`
	EntryTime  time.Time     `csv:"entry_time" yaml:"entry_time"`
	Size       float64       `csv:"size" yaml:"size"`
	StopLoss   float64       `csv:"stop_loss" yaml:"stop_loss"`
	TakeProfit float64       `csv:"take_profit" yaml:"take_profit"`
	Stage      PositionStage `csv:"stage" yaml:"stage"`
	// TrailingStop is the ratcheted effective stop once trailing management
	// begins. Zero until the stage advances past the first take-profit.
	TrailingStop float64 `csv:"trailing_stop" yaml:"trailing_stop"`
}
