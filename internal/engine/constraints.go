package engine

import (
	"sort"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

// Evaluator applies the run's constraints to one trading day. Checks run in
// a fixed order: trade-count cap (vetoes the whole day), short-sale policy
// (downgrades single tickers), stop-loss detection, drawdown halt.
type Evaluator struct {
	cfg *ConstraintsConfig
}

func NewEvaluator(cfg *ConstraintsConfig) *Evaluator {
	return &Evaluator{cfg: cfg}
}

// ExceedsTradeCounts reports whether the day's buy or sell counts break the
// trade-count cap. The cap is a fraction of the current position count, or
// of the universe size when the portfolio is flat. This is an all-or-nothing
// circuit breaker: a true result vetoes the entire day.
func (e *Evaluator) ExceedsTradeCounts(plan types.TradingPlan, positionCount, universeSize int) bool {
	if !e.cfg.maxLongCount.IsPositive() && !e.cfg.maxShortCount.IsPositive() {
		return false
	}
	base := decimal.NewFromInt(int64(positionCount))
	if positionCount == 0 {
		base = decimal.NewFromInt(int64(universeSize))
	}

	longs, shorts := 0, 0
	for _, sig := range plan {
		switch sig {
		case types.SignalBuy:
			longs++
		case types.SignalSell:
			shorts++
		}
	}
	if e.cfg.maxLongCount.IsPositive() {
		if decimal.NewFromInt(int64(longs)).GreaterThan(e.cfg.maxLongCount.Mul(base)) {
			return true
		}
	}
	if e.cfg.maxShortCount.IsPositive() {
		if decimal.NewFromInt(int64(shorts)).GreaterThan(e.cfg.maxShortCount.Mul(base)) {
			return true
		}
	}
	return false
}

// DisallowedShort reports whether a sell signal on a ticker without an open
// position must be downgraded under the long-only policy.
func (e *Evaluator) DisallowedShort(sig types.Signal, hasPosition bool) bool {
	return e.cfg.longOnly && sig == types.SignalSell && !hasPosition
}

// StopLossTriggers ratchets every open position's trailing stop against
// today's reference price and returns the tickers whose stop is breached,
// in ascending ticker order. A breached ticker closes all its lots.
func (e *Evaluator) StopLossTriggers(positions map[string][]*types.Position, prices map[string]decimal.Decimal) []string {
	var triggered []string
	for ticker, lots := range positions {
		price, ok := prices[ticker]
		if !ok {
			continue
		}
		breached := false
		for _, lot := range lots {
			lot.UpdateTrailingStop(price, e.cfg.trailingStopLossPct, e.cfg.trailingUpdateThresholdPct)
			if lot.Breached(price) {
				breached = true
			}
		}
		if breached {
			triggered = append(triggered, ticker)
		}
	}
	sort.Strings(triggered)
	return triggered
}

// TriggerMaxDrawdown reports whether the decline from the running trough of
// the portfolio-value curve exceeds the drawdown limit. A triggered halt
// suppresses the day's buys; sells and stop-losses still execute.
func (e *Evaluator) TriggerMaxDrawdown(current, trough decimal.Decimal) bool {
	if !e.cfg.maxDrawdownLimit.IsPositive() || !trough.IsPositive() {
		return false
	}
	drawdown := trough.Sub(current).Div(trough)
	return drawdown.GreaterThan(e.cfg.maxDrawdownLimit)
}
