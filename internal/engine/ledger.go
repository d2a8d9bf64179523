package engine

import (
	"sort"
	"time"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

// TradingStatus is the day's outcome in the status history.
type TradingStatus int

const (
	StatusVetoed  TradingStatus = -1
	StatusNoTrade TradingStatus = 0
	StatusTraded  TradingStatus = 1
)

// TradeRecord is one executed buy/sell/stop-loss for one ticker on one date.
type TradeRecord struct {
	Shares   decimal.Decimal
	Proceeds decimal.Decimal
	Cost     decimal.Decimal
}

// Ledger is the append-only, date-indexed record of everything a portfolio
// did. It is owned by the portfolio; everyone else (reporting, caching)
// reads it through the accessor views and must not modify what they get.
type Ledger struct {
	dates []time.Time

	portfolioValueCurve map[time.Time]decimal.Decimal
	capitalCurve        map[time.Time]decimal.Decimal
	holdingsHistory     map[time.Time]map[string]decimal.Decimal
	executedPlanHistory map[time.Time]map[string]types.Execution
	buyHistory          map[time.Time]map[string]TradeRecord
	sellHistory         map[time.Time]map[string]TradeRecord
	stopLossHistory     map[time.Time]map[string]TradeRecord
	closedPositions     map[time.Time]map[string][]*types.Position
	tradingStatus       map[time.Time]TradingStatus

	trough    decimal.Decimal
	hasTrough bool
}

func NewLedger() *Ledger {
	return &Ledger{
		portfolioValueCurve: make(map[time.Time]decimal.Decimal),
		capitalCurve:        make(map[time.Time]decimal.Decimal),
		holdingsHistory:     make(map[time.Time]map[string]decimal.Decimal),
		executedPlanHistory: make(map[time.Time]map[string]types.Execution),
		buyHistory:          make(map[time.Time]map[string]TradeRecord),
		sellHistory:         make(map[time.Time]map[string]TradeRecord),
		stopLossHistory:     make(map[time.Time]map[string]TradeRecord),
		closedPositions:     make(map[time.Time]map[string][]*types.Position),
		tradingStatus:       make(map[time.Time]TradingStatus),
	}
}

// RecordValue appends to the portfolio-value curve and keeps the running
// trough the drawdown check reads.
func (l *Ledger) RecordValue(date time.Time, value decimal.Decimal) {
	if _, seen := l.portfolioValueCurve[date]; !seen {
		l.dates = append(l.dates, date)
	}
	l.portfolioValueCurve[date] = value
	if !l.hasTrough || value.LessThan(l.trough) {
		l.trough = value
		l.hasTrough = true
	}
}

// Trough returns the running minimum of the value curve.
func (l *Ledger) Trough() (decimal.Decimal, bool) {
	return l.trough, l.hasTrough
}

func (l *Ledger) RecordCapital(date time.Time, cash decimal.Decimal) {
	l.capitalCurve[date] = cash
}

func (l *Ledger) RecordHoldings(date time.Time, holdings map[string]decimal.Decimal) {
	snapshot := make(map[string]decimal.Decimal, len(holdings))
	for ticker, shares := range holdings {
		snapshot[ticker] = shares
	}
	l.holdingsHistory[date] = snapshot
}

func (l *Ledger) RecordExecution(date time.Time, ticker string, exec types.Execution) {
	day, ok := l.executedPlanHistory[date]
	if !ok {
		day = make(map[string]types.Execution)
		l.executedPlanHistory[date] = day
	}
	day[ticker] = exec
}

func (l *Ledger) RecordBuy(date time.Time, ticker string, rec TradeRecord) {
	recordTrade(l.buyHistory, date, ticker, rec)
}

func (l *Ledger) RecordSell(date time.Time, ticker string, rec TradeRecord) {
	recordTrade(l.sellHistory, date, ticker, rec)
}

func (l *Ledger) RecordStopLoss(date time.Time, ticker string, rec TradeRecord) {
	recordTrade(l.stopLossHistory, date, ticker, rec)
}

func recordTrade(history map[time.Time]map[string]TradeRecord, date time.Time, ticker string, rec TradeRecord) {
	day, ok := history[date]
	if !ok {
		day = make(map[string]TradeRecord)
		history[date] = day
	}
	day[ticker] = rec
}

func (l *Ledger) RecordClosedPositions(date time.Time, ticker string, closed []*types.Position) {
	day, ok := l.closedPositions[date]
	if !ok {
		day = make(map[string][]*types.Position)
		l.closedPositions[date] = day
	}
	day[ticker] = append(day[ticker], closed...)
}

func (l *Ledger) RecordStatus(date time.Time, status TradingStatus) {
	l.tradingStatus[date] = status
}

// Read-only views. Callers must treat the returned maps as immutable.

func (l *Ledger) PortfolioValueCurve() map[time.Time]decimal.Decimal { return l.portfolioValueCurve }
func (l *Ledger) CapitalCurve() map[time.Time]decimal.Decimal       { return l.capitalCurve }
func (l *Ledger) HoldingsHistory() map[time.Time]map[string]decimal.Decimal {
	return l.holdingsHistory
}
func (l *Ledger) ExecutedPlanHistory() map[time.Time]map[string]types.Execution {
	return l.executedPlanHistory
}
func (l *Ledger) BuyHistory() map[time.Time]map[string]TradeRecord      { return l.buyHistory }
func (l *Ledger) SellHistory() map[time.Time]map[string]TradeRecord     { return l.sellHistory }
func (l *Ledger) StopLossHistory() map[time.Time]map[string]TradeRecord { return l.stopLossHistory }
func (l *Ledger) ClosedPositions() map[time.Time]map[string][]*types.Position {
	return l.closedPositions
}
func (l *Ledger) TradingStatus() map[time.Time]TradingStatus { return l.tradingStatus }

// Dates returns the recorded dates in chronological order.
func (l *Ledger) Dates() []time.Time {
	out := append([]time.Time(nil), l.dates...)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
