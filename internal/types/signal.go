package types

type ExitAction string

const (
	// ExitActionHold keeps the position untouched this bar.
	ExitActionHold ExitAction = "hold"
	// ExitActionPartial exits a fraction of the current size.
	ExitActionPartial ExitAction = "partial"
	// ExitActionFull exits the whole remaining size.
	ExitActionFull ExitAction = "full"
)

// EntrySignal is a qualifying entry decision produced by a signal evaluator.
// It carries the levels the tracker needs to open the position; sizing
// happens afterwards against the risk budget.
type EntrySignal struct {
	Price      float64
	StopLoss   float64
	TakeProfit float64
	// SizeScale multiplies the risk-derived size. 1 except when a variant
	// deliberately trades smaller (e.g. thin weekend sessions).
	SizeScale float64
	// Votes is the number of entry conditions that held, for logging.
	Votes int
}

// ExitDecision is the per-bar verdict for an open position. Exactly one
// reason is set when Action is not hold.
type ExitDecision struct {
	Action   ExitAction
	Reason   ExitReason
	Fraction float64
	// StopLoss is the (possibly ratcheted) stop level after this bar. The
	// tracker never lets it move down.
	StopLoss float64
	// TrailingStop is the effective trailing level after this bar, zero
	// while trailing management has not begun.
	TrailingStop float64
}

// HoldDecision returns a no-op decision that carries the position's current
// levels forward unchanged.
func HoldDecision(p Position) ExitDecision {
	return ExitDecision{
		Action:       ExitActionHold,
		Fraction:     0,
		StopLoss:     p.StopLoss,
		TrailingStop: p.TrailingStop,
	}
}
