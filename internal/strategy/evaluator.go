// Package strategy implements the signal evaluators for the built-in
// strategy variants: quorum-based entry rules plus single-stage and
// two-stage-trailing exit policies. Evaluators are pure: given the same bars
// and config they always produce the same decisions, and they never mutate
// position state; that is the tracker's job.
package strategy

import (
	"math"

	"github.com/heliosquant/tradecore/internal/types"
	"github.com/heliosquant/tradecore/pkg/errors"
)

// ExitPolicyKind selects how an open position is managed. The policy is
// fixed per variant by configuration, never chosen at runtime from position
// state.
type ExitPolicyKind string

const (
	// ExitSingleStage closes the whole position at take-profit or stop-loss.
	ExitSingleStage ExitPolicyKind = "single_stage"
	// ExitTwoStageTrailing sells a configured fraction at the first
	// take-profit and trails the remainder on
	// max(supertrend stop, close - ATR*chandelier).
	ExitTwoStageTrailing ExitPolicyKind = "two_stage_trailing"
)

// Evaluator turns bar pairs into entry signals and open positions into exit
// decisions for one configured strategy variant.
type Evaluator struct {
	cfg  Config
	rule EntryRule
	kind ExitPolicyKind

	// Variant hooks.
	useSwingLowFloor  bool
	ratchetStopOnGain bool
}

// New builds the evaluator for the configured variant. The config is
// defaulted, then validated; the quorum is checked against the variant's
// condition count.
func New(cfg Config) (*Evaluator, error) {
	cfg = cfg.withDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var e *Evaluator

	switch cfg.Variant {
	case VariantTrendFollowing:
		e = newTrendFollowing(cfg)
	case VariantMeanReversion:
		e = newMeanReversion(cfg)
	case VariantMultiTimeframe:
		e = newMultiTimeframe(cfg)
	default:
		return nil, errors.Newf(errors.ErrCodeUnknownStrategy, "unknown strategy variant: %s", cfg.Variant)
	}

	if e.rule.Quorum < 1 || e.rule.Quorum > len(e.rule.Conditions) {
		return nil, errors.Newf(errors.ErrCodeInvalidQuorum,
			"quorum %d out of range for %d conditions", e.rule.Quorum, len(e.rule.Conditions))
	}

	return e, nil
}

// Name returns the variant name.
func (e *Evaluator) Name() string {
	return e.cfg.Variant
}

// Config returns the defaulted configuration the evaluator runs with.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// ExitPolicy returns the exit policy kind of this variant.
func (e *Evaluator) ExitPolicy() ExitPolicyKind {
	return e.kind
}

// EvaluateEntry checks the entry quorum and, when it fires, derives the
// entry levels from the current bar. The caller guarantees no position is
// open for the symbol. The second return value is false when no entry
// should happen this bar.
func (e *Evaluator) EvaluateEntry(prev, cur types.Bar) (types.EntrySignal, bool) {
	fires, votes := e.rule.Fires(prev, cur)
	if !fires {
		return types.EntrySignal{}, false
	}

	// Exit levels are anchored on ATR; without it there is no stop distance
	// and therefore no position.
	atr, ok := cur.Indicator(types.IndicatorATR)
	if !ok || atr <= 0 {
		return types.EntrySignal{}, false
	}

	stopLoss := cur.Close - atr*e.cfg.StopLossMultiplier

	if e.useSwingLowFloor {
		// Floor the initial stop at the recent swing low so a wide ATR
		// cannot park the stop below obvious structure.
		if swingLow, ok := cur.Indicator(types.IndicatorSwingLow); ok {
			stopLoss = math.Max(stopLoss, swingLow)
		}
	}

	scale := 1.0
	if e.cfg.ReduceWeekendSize && isWeekend(cur.Timestamp) {
		scale = e.cfg.WeekendSizeScale
	}

	return types.EntrySignal{
		Price:      cur.Close,
		StopLoss:   stopLoss,
		TakeProfit: cur.Close + atr*e.cfg.TakeProfitMultiplier,
		SizeScale:  scale,
		Votes:      votes,
	}, true
}

// EvaluateExit produces the per-bar verdict for an open position. Reasons
// are mutually exclusive per call: the stop-loss is checked only while the
// position is open, the trailing stop only after the stage advanced past the
// first take-profit.
func (e *Evaluator) EvaluateExit(cur types.Bar, pos types.Position) types.ExitDecision {
	switch pos.Stage {
	case types.StageOpen:
		if e.kind == ExitTwoStageTrailing {
			return e.evaluateOpenTwoStage(cur, pos)
		}

		return e.evaluateOpenSingleStage(cur, pos)
	case types.StageOneDone:
		return e.evaluateTrailing(cur, pos)
	default:
		return types.HoldDecision(pos)
	}
}

func (e *Evaluator) evaluateOpenTwoStage(cur types.Bar, pos types.Position) types.ExitDecision {
	if cur.Close >= pos.TakeProfit {
		return types.ExitDecision{
			Action:       types.ExitActionPartial,
			Reason:       types.ExitReasonTakeProfitStage1,
			Fraction:     e.cfg.Stage1ExitFraction,
			StopLoss:     pos.StopLoss,
			TrailingStop: pos.TrailingStop,
		}
	}

	if cur.Close <= pos.StopLoss {
		return fullExit(pos, types.ExitReasonStopLoss)
	}

	return types.HoldDecision(pos)
}

func (e *Evaluator) evaluateOpenSingleStage(cur types.Bar, pos types.Position) types.ExitDecision {
	stopLoss := pos.StopLoss

	// Slide the stop up behind a favorable move. The tracker ratchets, so
	// the level can only ever tighten.
	if e.ratchetStopOnGain && cur.Close > pos.EntryPrice {
		if atr, ok := cur.Indicator(types.IndicatorATR); ok {
			stopLoss = math.Max(stopLoss, cur.Close-atr*e.cfg.StopLossMultiplier)
		}
	}

	if cur.Close <= stopLoss {
		decision := fullExit(pos, types.ExitReasonStopLoss)
		decision.StopLoss = stopLoss

		return decision
	}

	if cur.Close >= pos.TakeProfit {
		decision := fullExit(pos, types.ExitReasonTakeProfit)
		decision.StopLoss = stopLoss

		return decision
	}

	decision := types.HoldDecision(pos)
	decision.StopLoss = stopLoss

	return decision
}

func (e *Evaluator) evaluateTrailing(cur types.Bar, pos types.Position) types.ExitDecision {
	trailing := pos.TrailingStop

	if stStop, ok := cur.Indicator(types.IndicatorSuperTrendStop); ok {
		trailing = math.Max(trailing, stStop)
	}

	if atr, ok := cur.Indicator(types.IndicatorATR); ok {
		trailing = math.Max(trailing, cur.Close-atr*e.cfg.ChandelierMultiplier)
	}

	if trailing > 0 && cur.Close <= trailing {
		decision := fullExit(pos, types.ExitReasonTrailingStop)
		decision.TrailingStop = trailing

		return decision
	}

	// The original stop keeps guarding the remainder even after stage 1.
	if cur.Close <= pos.StopLoss {
		decision := fullExit(pos, types.ExitReasonStopLoss)
		decision.TrailingStop = trailing

		return decision
	}

	decision := types.HoldDecision(pos)
	decision.TrailingStop = trailing

	return decision
}

func fullExit(pos types.Position, reason types.ExitReason) types.ExitDecision {
	return types.ExitDecision{
		Action:       types.ExitActionFull,
		Reason:       reason,
		Fraction:     1,
		StopLoss:     pos.StopLoss,
		TrailingStop: pos.TrailingStop,
	}
}
