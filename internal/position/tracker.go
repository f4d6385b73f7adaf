// Package position owns the lifecycle of at most one open position per
// tracker. Evaluators decide, the tracker executes: it applies entry signals
// and exit decisions, enforces the stop ratchet, and hands the resulting
// fills to the ledger.
package position

import (
	"math"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/heliosquant/tradecore/internal/logger"
	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

// Fill is the execution record the tracker emits when size leaves the
// position. The ledger turns fills into trades with PnL attached.
type Fill struct {
	Time   time.Time
	Price  float64
	Size   float64
	Reason types.ExitReason
	// Remaining is the size still held after this fill. Zero when the
	// position closed.
	Remaining float64
}

// Tracker is the per-symbol position state machine. Stage transitions are
// flat -> open -> (stage1_done ->) closed -> flat; nothing else mutates the
// position.
type Tracker struct {
	log *logger.Logger
	pos types.Position
}

// NewTracker returns a tracker in the flat state.
func NewTracker(log *logger.Logger) *Tracker {
	return &Tracker{
		log: log,
		pos: types.Position{Stage: types.StageFlat},
	}
}

// Stage returns the current lifecycle stage.
func (t *Tracker) Stage() types.PositionStage {
	return t.pos.Stage
}

// Position returns the held position, or None when the tracker is flat.
func (t *Tracker) Position() optional.Option[types.Position] {
	if !t.holding() {
		return optional.None[types.Position]()
	}

	return optional.Some(t.pos)
}

func (t *Tracker) holding() bool {
	return t.pos.Stage == types.StageOpen || t.pos.Stage == types.StageOneDone
}

// Open creates a position from a sized entry signal. It fails when a
// position is already held or when the levels are degenerate; callers skip
// the entry instead of retrying.
func (t *Tracker) Open(symbol string, ts time.Time, signal types.EntrySignal, size float64) error {
	if t.holding() {
		return errors.Newf(errors.ErrCodePositionNotFlat,
			"cannot open %s: position already held in stage %s", symbol, t.pos.Stage)
	}

	if size <= 0 || signal.Price <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"cannot open %s: size %f at price %f", symbol, size, signal.Price)
	}

	if signal.StopLoss >= signal.Price {
		return errors.Newf(errors.ErrCodeInvalidParameter,
			"cannot open %s: stop %f not below entry %f", symbol, signal.StopLoss, signal.Price)
	}

	t.pos = types.Position{
		Symbol:     symbol,
		EntryPrice: signal.Price,
		EntryTime:  ts,
		Size:       size,
		StopLoss:   signal.StopLoss,
		TakeProfit: signal.TakeProfit,
		Stage:      types.StageOpen,
	}

	t.log.Debug("position opened",
		zap.String("symbol", symbol),
		zap.Float64("price", signal.Price),
		zap.Float64("size", size),
		zap.Float64("stop_loss", signal.StopLoss),
		zap.Float64("take_profit", signal.TakeProfit),
		zap.Int("votes", signal.Votes),
	)

	return nil
}

// Apply executes an exit decision against the held position. Stops only ever
// ratchet upward regardless of what the decision carries, and size is
// conserved: the exited size plus the remainder always equals the size held
// before the call.
func (t *Tracker) Apply(cur types.Bar, decision types.ExitDecision) (optional.Option[Fill], error) {
	if !t.holding() {
		return optional.None[Fill](), errors.Newf(errors.ErrCodePositionNotOpen,
			"cannot apply exit decision in stage %s", t.pos.Stage)
	}

	t.pos.StopLoss = math.Max(t.pos.StopLoss, decision.StopLoss)
	t.pos.TrailingStop = math.Max(t.pos.TrailingStop, decision.TrailingStop)

	switch decision.Action {
	case types.ExitActionHold:
		return optional.None[Fill](), nil
	case types.ExitActionPartial:
		return t.exitPartial(cur, decision)
	case types.ExitActionFull:
		return t.exitFull(cur, decision)
	default:
		return optional.None[Fill](), errors.Newf(errors.ErrCodeInvalidParameter,
			"unknown exit action %q", decision.Action)
	}
}

func (t *Tracker) exitPartial(cur types.Bar, decision types.ExitDecision) (optional.Option[Fill], error) {
	if t.pos.Stage != types.StageOpen {
		return optional.None[Fill](), errors.Newf(errors.ErrCodeInvariantViolation,
			"partial exit in stage %s", t.pos.Stage)
	}

	if decision.Fraction <= 0 || decision.Fraction >= 1 {
		return optional.None[Fill](), errors.Newf(errors.ErrCodeInvalidParameter,
			"partial exit fraction %f out of (0,1)", decision.Fraction)
	}

	exitSize := t.pos.Size * decision.Fraction
	t.pos.Size -= exitSize
	t.pos.Stage = types.StageOneDone

	t.log.Debug("stage 1 exit",
		zap.String("symbol", t.pos.Symbol),
		zap.Float64("price", cur.Close),
		zap.Float64("exit_size", exitSize),
		zap.Float64("remaining", t.pos.Size),
	)

	return optional.Some(Fill{
		Time:      cur.Timestamp,
		Price:     cur.Close,
		Size:      exitSize,
		Reason:    decision.Reason,
		Remaining: t.pos.Size,
	}), nil
}

func (t *Tracker) exitFull(cur types.Bar, decision types.ExitDecision) (optional.Option[Fill], error) {
	exitSize := t.pos.Size
	symbol := t.pos.Symbol

	t.pos = types.Position{Stage: types.StageFlat}

	t.log.Debug("position closed",
		zap.String("symbol", symbol),
		zap.Float64("price", cur.Close),
		zap.Float64("size", exitSize),
		zap.String("reason", string(decision.Reason)),
	)

	return optional.Some(Fill{
		Time:      cur.Timestamp,
		Price:     cur.Close,
		Size:      exitSize,
		Reason:    decision.Reason,
		Remaining: 0,
	}), nil
}
