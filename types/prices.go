package types

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type PriceKind string

const (
	PriceOpen   PriceKind = "open"
	PriceClose  PriceKind = "close"
	PriceHigh   PriceKind = "high"
	PriceLow    PriceKind = "low"
	PriceVolume PriceKind = "volume"
)

// Frame is a date-indexed table of one price kind: one column per ticker,
// one row per trading date, dates ascending. The price source guarantees
// the same date index across kinds. Frames are read-only once the
// simulation starts.
type Frame struct {
	Dates  []time.Time
	Values map[string][]decimal.Decimal
}

func NewFrame(dates []time.Time, tickers []string) *Frame {
	f := &Frame{
		Dates:  dates,
		Values: make(map[string][]decimal.Decimal, len(tickers)),
	}
	for _, ticker := range tickers {
		f.Values[ticker] = make([]decimal.Decimal, len(dates))
	}
	return f
}

// Tickers returns the column names in ascending order.
func (f *Frame) Tickers() []string {
	tickers := make([]string, 0, len(f.Values))
	for ticker := range f.Values {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// index returns the row position of date, or -1 if the date is not in the frame.
func (f *Frame) index(date time.Time) int {
	i := sort.Search(len(f.Dates), func(i int) bool { return !f.Dates[i].Before(date) })
	if i < len(f.Dates) && f.Dates[i].Equal(date) {
		return i
	}
	return -1
}

// At returns the value for ticker on date.
func (f *Frame) At(date time.Time, ticker string) (decimal.Decimal, bool) {
	i := f.index(date)
	if i < 0 {
		return decimal.Zero, false
	}
	col, ok := f.Values[ticker]
	if !ok {
		return decimal.Zero, false
	}
	return col[i], true
}

// Row returns all ticker values for one date.
func (f *Frame) Row(date time.Time) map[string]decimal.Decimal {
	i := f.index(date)
	if i < 0 {
		return nil
	}
	row := make(map[string]decimal.Decimal, len(f.Values))
	for ticker, col := range f.Values {
		row[ticker] = col[i]
	}
	return row
}

// Window returns up to lookback rows strictly before date. The current day
// is excluded so strategies cannot see the price they will trade at.
func (f *Frame) Window(date time.Time, lookback int) *Frame {
	end := sort.Search(len(f.Dates), func(i int) bool { return !f.Dates[i].Before(date) })
	start := end - lookback
	if start < 0 {
		start = 0
	}
	out := &Frame{
		Dates:  f.Dates[start:end],
		Values: make(map[string][]decimal.Decimal, len(f.Values)),
	}
	for ticker, col := range f.Values {
		out.Values[ticker] = col[start:end]
	}
	return out
}
