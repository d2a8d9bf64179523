package types

import (
	"errors"
	"time"
)

// Signal is a single strategy vote for one ticker on one date.
type Signal int

const (
	SignalSell Signal = -1
	SignalHold Signal = 0
	SignalBuy  Signal = 1
)

// TradingPlan is the combined per-date plan after voting, keyed by ticker.
type TradingPlan map[string]Signal

// Execution records what actually happened to one plan entry after the
// portfolio applied its constraints. A downgraded entry keeps the original
// signal but carries Executed=false and a reason.
type Execution struct {
	Signal   Signal
	Executed bool
	Reason   string
}

const (
	ReasonNoShortSell         = "No short sell"
	ReasonInsufficientCapital = "Insufficient capital"
	ReasonMaxDrawdown         = "Max drawdown"
	ReasonStopLoss            = "Stop loss"
	ReasonPositionSizeCap     = "Position size cap"
)

var ErrSignalIndexMismatch = errors.New("signal frames have different date indexes")

// SignalFrame is the batch form of a strategy's output: one vote per
// ticker per date, sharing the date index of the price frame it was
// computed from.
type SignalFrame struct {
	Dates   []time.Time
	Signals map[string][]Signal
}

func NewSignalFrame(dates []time.Time, tickers []string) *SignalFrame {
	sf := &SignalFrame{
		Dates:   dates,
		Signals: make(map[string][]Signal, len(tickers)),
	}
	for _, ticker := range tickers {
		sf.Signals[ticker] = make([]Signal, len(dates))
	}
	return sf
}

// Row returns the per-ticker votes for the date at index i.
func (sf *SignalFrame) Row(i int) map[string]Signal {
	row := make(map[string]Signal, len(sf.Signals))
	for ticker, votes := range sf.Signals {
		row[ticker] = votes[i]
	}
	return row
}

// SameIndex reports whether two frames share an identical date index.
func (sf *SignalFrame) SameIndex(other *SignalFrame) bool {
	if len(sf.Dates) != len(other.Dates) {
		return false
	}
	for i := range sf.Dates {
		if !sf.Dates[i].Equal(other.Dates[i]) {
			return false
		}
	}
	return true
}
