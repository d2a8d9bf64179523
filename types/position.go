package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionStatus string

const (
	PositionOpen   PositionStatus = "OPEN"
	PositionClosed PositionStatus = "CLOSED"
)

type ExitReason string

const (
	ExitSell        ExitReason = "SELL"
	ExitStopLoss    ExitReason = "STOP_LOSS"
	ExitMaxDrawdown ExitReason = "MAX_DRAWDOWN"
)

// Position is one opened lot of one ticker. Multiple positions per ticker
// may coexist when buys layer on top of an existing holding; a sell closes
// all of them in one event. A closed position is never mutated again.
type Position struct {
	Ticker      string
	EntryDate   time.Time
	EntryPrice  decimal.Decimal
	EntryShares decimal.Decimal

	PeakPrice decimal.Decimal
	StopPrice decimal.Decimal

	Status     PositionStatus
	ExitDate   time.Time
	ExitPrice  decimal.Decimal
	ExitShares decimal.Decimal
	ExitReason ExitReason
}

// NewPosition opens a lot and seeds the trailing stop below the entry price.
func NewPosition(ticker string, date time.Time, price, shares, stopLossPct decimal.Decimal) *Position {
	return &Position{
		Ticker:      ticker,
		EntryDate:   date,
		EntryPrice:  price,
		EntryShares: shares,
		PeakPrice:   price,
		StopPrice:   price.Mul(decimal.NewFromInt(1).Sub(stopLossPct)),
		Status:      PositionOpen,
	}
}

// UpdateTrailingStop ratchets the stop price upward when the price has
// improved on the peak by more than the update threshold. The stop never
// moves down.
func (p *Position) UpdateTrailingStop(price, stopLossPct, updateThresholdPct decimal.Decimal) {
	if p.Status == PositionClosed {
		return
	}
	one := decimal.NewFromInt(1)
	threshold := p.PeakPrice.Mul(one.Add(updateThresholdPct))
	if price.GreaterThan(threshold) {
		newStop := price.Mul(one.Sub(stopLossPct))
		if newStop.GreaterThan(p.StopPrice) {
			p.StopPrice = newStop
		}
	}
	if price.GreaterThan(p.PeakPrice) {
		p.PeakPrice = price
	}
}

// Breached reports whether the price has fallen through the stop.
func (p *Position) Breached(price decimal.Decimal) bool {
	return p.Status == PositionOpen && price.LessThan(p.StopPrice)
}

// Close marks the lot closed. It is a no-op on an already closed position.
func (p *Position) Close(date time.Time, price decimal.Decimal, reason ExitReason) {
	if p.Status == PositionClosed {
		return
	}
	p.Status = PositionClosed
	p.ExitDate = date
	p.ExitPrice = price
	p.ExitShares = p.EntryShares
	p.ExitReason = reason
}

// Notional is the lot's value at the given price.
func (p *Position) Notional(price decimal.Decimal) decimal.Decimal {
	return p.EntryShares.Mul(price)
}
