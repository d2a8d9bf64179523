package engine

import (
	"time"

	"github.com/oodoriko/port-sub000/types"
)

// Voter reduces the votes of several strategies into one trading plan per
// date. Plurality voting picks the most common vote; sum voting, used when
// at least one strategy acts as a confirming filter, takes the sign of the
// vote total.
type Voter struct {
	useSum     bool
	tieBreaker types.Signal
}

// NewVoter builds a voter. hasFilter selects sum voting; tieBreaker is the
// plurality fallback when two votes share the top count (hold, usually).
func NewVoter(hasFilter bool, tieBreaker types.Signal) *Voter {
	return &Voter{useSum: hasFilter, tieBreaker: tieBreaker}
}

// PluralityVote tallies the votes and returns the mode. A tie between the
// two most common values resolves to the tie breaker; a single distinct
// vote wins outright.
func PluralityVote(votes []types.Signal, tieBreaker types.Signal) types.Signal {
	if len(votes) == 0 {
		return types.SignalHold
	}
	counts := make(map[types.Signal]int, 3)
	for _, v := range votes {
		counts[v]++
	}
	if len(counts) == 1 {
		return votes[0]
	}

	// Candidates are the fixed set {-1,0,1}, so iteration order is stable.
	best := types.SignalHold
	bestCount, secondCount := -1, -1
	for _, candidate := range []types.Signal{types.SignalSell, types.SignalHold, types.SignalBuy} {
		c := counts[candidate]
		if c > bestCount {
			secondCount = bestCount
			best, bestCount = candidate, c
		} else if c > secondCount {
			secondCount = c
		}
	}
	if secondCount == bestCount {
		return tieBreaker
	}
	return best
}

// SumVote returns the sign of the vote total; a zero sum holds.
func SumVote(votes []types.Signal) types.Signal {
	sum := 0
	for _, v := range votes {
		sum += int(v)
	}
	switch {
	case sum > 0:
		return types.SignalBuy
	case sum < 0:
		return types.SignalSell
	}
	return types.SignalHold
}

// Plan combines one date's strategy outputs, one map per strategy, into a
// single trading plan. Tickers missing from a strategy's map count as hold.
func (v *Voter) Plan(perStrategy []map[string]types.Signal, universe []string) types.TradingPlan {
	plan := make(types.TradingPlan, len(universe))
	votes := make([]types.Signal, len(perStrategy))
	for _, ticker := range universe {
		for i, signals := range perStrategy {
			votes[i] = signals[ticker]
		}
		if v.useSum {
			plan[ticker] = SumVote(votes)
		} else {
			plan[ticker] = PluralityVote(votes, v.tieBreaker)
		}
	}
	return plan
}

// PlanBatch combines whole signal frames at once. It is a fast path only:
// the result for every date is identical to calling Plan date by date.
func (v *Voter) PlanBatch(frames []*types.SignalFrame, universe []string) (map[int64]types.TradingPlan, []time.Time, error) {
	if len(frames) == 0 {
		return nil, nil, nil
	}
	for _, frame := range frames[1:] {
		if !frames[0].SameIndex(frame) {
			return nil, nil, types.ErrSignalIndexMismatch
		}
	}

	plans := make(map[int64]types.TradingPlan, len(frames[0].Dates))
	perStrategy := make([]map[string]types.Signal, len(frames))
	for i, date := range frames[0].Dates {
		for j, frame := range frames {
			perStrategy[j] = frame.Row(i)
		}
		plans[date.Unix()] = v.Plan(perStrategy, universe)
	}
	return plans, frames[0].Dates, nil
}
