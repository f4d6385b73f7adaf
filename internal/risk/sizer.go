// Package risk converts a risk budget into a position size.
package risk

import (
	"math"
)

// Sizer computes position sizes from a fixed risk budget per trade. The
// commission rate is the fraction of notional charged per fill.
type Sizer struct {
	riskFraction float64
	commission   float64
}

func NewSizer(riskFraction float64, commission float64) *Sizer {
	return &Sizer{
		riskFraction: riskFraction,
		commission:   commission,
	}
}

// Size returns the position size in base-asset units for the given entry,
// stop-loss and portfolio value.
//
// The raw size puts riskFraction of the portfolio at risk over the distance
// between entry and stop, then shrinks so the projected entry commission is
// absorbed without exceeding the risk budget.
//
// Returns exactly 0 when the entry price, stop price or portfolio value is
// non-positive, or when the stop distance is zero. Callers must treat 0 as
// "do not open", never as an error.
func (s *Sizer) Size(entryPrice float64, stopLoss float64, portfolioValue float64) float64 {
	if entryPrice <= 0 || stopLoss <= 0 || portfolioValue <= 0 {
		return 0
	}

	riskPerUnit := math.Abs(entryPrice - stopLoss)
	if riskPerUnit == 0 {
		return 0
	}

	riskAmount := portfolioValue * s.riskFraction
	rawSize := riskAmount / riskPerUnit

	// Shrink the size so the projected commission on the notional is paid
	// out of the risk budget rather than on top of it.
	commissionCost := rawSize * entryPrice * s.commission
	size := (rawSize*entryPrice - commissionCost) / entryPrice

	if size < 0 {
		return 0
	}

	return size
}
