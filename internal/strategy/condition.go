package strategy

import (
	"github.com/heliosquant/tradecore/internal/types"
)

// Predicate evaluates a single entry sub-condition against the previous and
// current bar.
type Predicate func(prev, cur types.Bar) bool

// Condition is one named, pure entry predicate. A missing or NaN indicator
// makes the condition false rather than raising an error, so a half-warmed
// series can never vote for an entry. The previous bar is supplied for
// momentum-style comparisons.
type Condition struct {
	Name  string
	Check Predicate
}

// EntryRule fires when at least Quorum of its conditions hold.
type EntryRule struct {
	Conditions []Condition
	Quorum     int
}

// Votes returns how many conditions hold for this bar pair.
func (r EntryRule) Votes(prev, cur types.Bar) int {
	votes := 0

	for _, cond := range r.Conditions {
		if cond.Check(prev, cur) {
			votes++
		}
	}

	return votes
}

// Fires reports whether the vote count meets the quorum.
func (r EntryRule) Fires(prev, cur types.Bar) (bool, int) {
	votes := r.Votes(prev, cur)

	return votes >= r.Quorum, votes
}
