package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

var (
	ErrShortSellNotAllowed = errors.New("short sell not allowed")
	ErrLedgerDesync        = errors.New("ledger desync: holdings reference ticker with no open position")
	ErrNegativeCash        = errors.New("cash went negative after buy commit")
)

// Portfolio is the state machine at the center of a backtest run. Trade is
// called once per trading date, strictly in chronological order: the
// running drawdown trough and the trailing stops both depend on every
// prior day having been committed.
type Portfolio struct {
	name        string
	cfg         *PortfolioConfig
	constraints *ConstraintsConfig
	evaluator   *Evaluator
	allocator   *Allocator
	cost        *CostModel

	cash         decimal.Decimal
	positions    map[string][]*types.Position
	ledger       *Ledger
	universeSize int

	lastGrowthPeriod    int64
	hasGrowthPeriodSeen bool
}

func NewPortfolio(
	name string,
	cfg *PortfolioConfig,
	constraints *ConstraintsConfig,
	products map[string]types.Product,
	universeSize int,
) *Portfolio {
	cost := NewCostModel()
	return &Portfolio{
		name:         name,
		cfg:          cfg,
		constraints:  constraints,
		evaluator:    NewEvaluator(constraints),
		allocator:    NewAllocator(constraints, cost, products),
		cost:         cost,
		cash:         cfg.initialCapital,
		positions:    make(map[string][]*types.Position),
		ledger:       NewLedger(),
		universeSize: universeSize,
	}
}

func (p *Portfolio) Name() string    { return p.name }
func (p *Portfolio) Ledger() *Ledger { return p.ledger }

func (p *Portfolio) Cash() decimal.Decimal { return p.cash }

// Holdings returns ticker -> aggregate open shares.
func (p *Portfolio) Holdings() map[string]decimal.Decimal {
	holdings := make(map[string]decimal.Decimal, len(p.positions))
	for ticker, lots := range p.positions {
		total := decimal.Zero
		for _, lot := range lots {
			total = total.Add(lot.EntryShares)
		}
		holdings[ticker] = total
	}
	return holdings
}

// Value is cash plus the notional of all open lots at the given prices.
func (p *Portfolio) Value(prices map[string]decimal.Decimal) decimal.Decimal {
	value := p.cash
	for ticker, lots := range p.positions {
		price, ok := prices[ticker]
		if !ok {
			continue
		}
		for _, lot := range lots {
			value = value.Add(lot.Notional(price))
		}
	}
	return value
}

// Trade advances the portfolio by one day. Sequence: trade-count veto,
// capital injection, sells and stop-losses, drawdown halt, buys, commit.
// A per-ticker problem is recorded and skipped; only the trade-count cap
// rejects the whole day, and only a ledger inconsistency aborts the run.
func (p *Portfolio) Trade(date time.Time, plan types.TradingPlan, prices, volumes map[string]decimal.Decimal) error {
	// 1. Trade-count circuit breaker: record the veto and leave all state alone.
	if p.evaluator.ExceedsTradeCounts(plan, len(p.positions), p.universeSize) {
		p.ledger.RecordStatus(date, StatusVetoed)
		p.ledger.RecordValue(date, p.Value(prices))
		p.ledger.RecordCapital(date, p.cash)
		p.ledger.RecordHoldings(date, p.Holdings())
		return nil
	}

	// 2. Scheduled capital injection.
	p.cash = p.cash.Add(p.newCapital(date, prices))

	traded := false

	// 3. Sells first, then forced stop-loss closes.
	sellTickers := make([]string, 0, len(plan))
	for ticker, sig := range plan {
		if sig == types.SignalSell {
			sellTickers = append(sellTickers, ticker)
		}
	}
	sort.Strings(sellTickers)

	for _, ticker := range sellTickers {
		if len(p.positions[ticker]) == 0 {
			if p.constraints.longOnly {
				p.ledger.RecordExecution(date, ticker, types.Execution{
					Signal: types.SignalSell, Reason: types.ReasonNoShortSell,
				})
				continue
			}
			// Shorting was supposedly allowed but nothing is held: the
			// upstream signal pipeline and the ledger disagree.
			return fmt.Errorf("%w: sell %s on %s with no open position", ErrShortSellNotAllowed, ticker, date.Format("2006-01-02"))
		}
		if err := p.closeTicker(date, ticker, prices, volumes, types.ExitSell); err != nil {
			return err
		}
		p.ledger.RecordExecution(date, ticker, types.Execution{Signal: types.SignalSell, Executed: true})
		traded = true
	}

	for _, ticker := range p.evaluator.StopLossTriggers(p.positions, prices) {
		if err := p.closeTicker(date, ticker, prices, volumes, types.ExitStopLoss); err != nil {
			return err
		}
		p.ledger.RecordExecution(date, ticker, types.Execution{
			Signal: plan[ticker], Executed: true, Reason: types.ReasonStopLoss,
		})
		traded = true
	}

	// 4. Drawdown halt against the running trough of prior days.
	buyHalted := false
	if trough, ok := p.ledger.Trough(); ok {
		buyHalted = p.evaluator.TriggerMaxDrawdown(p.Value(prices), trough)
	}

	// 5. Buys through the allocator.
	buyTickers := make([]string, 0, len(plan))
	for ticker, sig := range plan {
		if sig != types.SignalBuy {
			continue
		}
		if _, closed := p.ledger.stopLossHistory[date][ticker]; closed {
			// A stop fired on this ticker today; do not re-enter on the same bar.
			continue
		}
		if buyHalted {
			p.ledger.RecordExecution(date, ticker, types.Execution{
				Signal: types.SignalBuy, Reason: types.ReasonMaxDrawdown,
			})
			continue
		}
		buyTickers = append(buyTickers, ticker)
	}
	sort.Strings(buyTickers)

	if len(buyTickers) > 0 {
		executed, err := p.executeBuys(date, buyTickers, prices, volumes)
		if err != nil {
			return err
		}
		traded = traded || executed
	}

	// 6. Commit.
	p.ledger.RecordValue(date, p.Value(prices))
	p.ledger.RecordCapital(date, p.cash)
	p.ledger.RecordHoldings(date, p.Holdings())
	if traded {
		p.ledger.RecordStatus(date, StatusTraded)
	} else {
		p.ledger.RecordStatus(date, StatusNoTrade)
	}
	return nil
}

// newCapital returns the scheduled injection for this date, at most once
// per period of the configured frequency.
func (p *Portfolio) newCapital(date time.Time, prices map[string]decimal.Decimal) decimal.Decimal {
	if !p.cfg.capitalGrowthAmount.IsPositive() && !p.cfg.capitalGrowthPct.IsPositive() {
		return decimal.Zero
	}
	period := p.cfg.capitalGrowthFreq.PeriodKey(date)
	if p.hasGrowthPeriodSeen && period == p.lastGrowthPeriod {
		return decimal.Zero
	}
	first := !p.hasGrowthPeriodSeen
	p.lastGrowthPeriod = period
	p.hasGrowthPeriodSeen = true
	if first {
		// The opening period is funded by initial capital.
		return decimal.Zero
	}
	if p.cfg.capitalGrowthAmount.IsPositive() {
		return p.cfg.capitalGrowthAmount
	}
	return p.Value(prices).Mul(p.cfg.capitalGrowthPct)
}

// closeTicker closes every open lot for the ticker in one event, credits
// net proceeds to cash, and appends the trade and closed-lot records.
func (p *Portfolio) closeTicker(date time.Time, ticker string, prices, volumes map[string]decimal.Decimal, reason types.ExitReason) error {
	lots := p.positions[ticker]
	if len(lots) == 0 {
		return fmt.Errorf("%w: %s on %s", ErrLedgerDesync, ticker, date.Format("2006-01-02"))
	}
	price, ok := prices[ticker]
	if !ok {
		return fmt.Errorf("%w: no price for %s on %s", ErrLedgerDesync, ticker, date.Format("2006-01-02"))
	}

	shares := decimal.Zero
	for _, lot := range lots {
		shares = shares.Add(lot.EntryShares)
		lot.Close(date, price, reason)
	}
	proceeds := shares.Mul(price)
	cost := p.cost.Cost(shares.Neg(), volumes[ticker], price, 1)
	p.cash = p.cash.Add(proceeds).Sub(cost)

	rec := TradeRecord{Shares: shares.Neg(), Proceeds: proceeds, Cost: cost}
	if reason == types.ExitStopLoss {
		p.ledger.RecordStopLoss(date, ticker, rec)
	} else {
		p.ledger.RecordSell(date, ticker, rec)
	}
	p.ledger.RecordClosedPositions(date, ticker, lots)
	delete(p.positions, ticker)
	return nil
}

// heldValues returns ticker -> open position value at the given prices.
func (p *Portfolio) heldValues(prices map[string]decimal.Decimal) map[string]decimal.Decimal {
	held := make(map[string]decimal.Decimal, len(p.positions))
	for ticker, lots := range p.positions {
		price, ok := prices[ticker]
		if !ok {
			continue
		}
		total := decimal.Zero
		for _, lot := range lots {
			total = total.Add(lot.Notional(price))
		}
		held[ticker] = total
	}
	return held
}

// executeBuys sizes the buy list with the allocator and opens one lot per
// filled ticker. The allocator has already proven total spend fits in cash
// and that existing lots plus the new order stay under the position cap; a
// zero fill is recorded as a capped or underfunded downgrade.
func (p *Portfolio) executeBuys(date time.Time, tickers []string, prices, volumes map[string]decimal.Decimal) (bool, error) {
	value := p.Value(prices)
	held := p.heldValues(prices)
	allocations, err := p.allocator.Allocate(p.cash, value, tickers, prices, volumes, held)
	if err != nil {
		return false, err
	}

	maxPosition := value.Mul(p.constraints.maxPositionSize)
	executed := false
	for _, ticker := range tickers {
		alloc := allocations[ticker]
		if !alloc.Shares.IsPositive() {
			reason := types.ReasonInsufficientCapital
			if held[ticker].GreaterThanOrEqual(maxPosition) {
				reason = types.ReasonPositionSizeCap
			}
			p.ledger.RecordExecution(date, ticker, types.Execution{
				Signal: types.SignalBuy, Reason: reason,
			})
			continue
		}
		price := prices[ticker]
		spend := alloc.Shares.Mul(price).Add(alloc.Cost)
		if spend.GreaterThan(p.cash) {
			p.ledger.RecordExecution(date, ticker, types.Execution{
				Signal: types.SignalBuy, Reason: types.ReasonInsufficientCapital,
			})
			continue
		}
		p.cash = p.cash.Sub(spend)
		if p.cash.IsNegative() {
			return false, fmt.Errorf("%w: %s on %s", ErrNegativeCash, ticker, date.Format("2006-01-02"))
		}
		lot := types.NewPosition(ticker, date, price, alloc.Shares, p.constraints.trailingStopLossPct)
		p.positions[ticker] = append(p.positions[ticker], lot)
		p.ledger.RecordBuy(date, ticker, TradeRecord{
			Shares:   alloc.Shares,
			Proceeds: alloc.Shares.Mul(price).Neg(),
			Cost:     alloc.Cost,
		})
		p.ledger.RecordExecution(date, ticker, types.Execution{Signal: types.SignalBuy, Executed: true})
		executed = true
	}
	return executed, nil
}

// Liquidate closes every open position at the given prices, tagging the
// closes with the reason. Used to flatten the book at the end of a run or
// after a terminal drawdown breach.
func (p *Portfolio) Liquidate(date time.Time, prices, volumes map[string]decimal.Decimal, reason types.ExitReason) error {
	tickers := make([]string, 0, len(p.positions))
	for ticker := range p.positions {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		if err := p.closeTicker(date, ticker, prices, volumes, reason); err != nil {
			return err
		}
	}
	p.ledger.RecordValue(date, p.Value(prices))
	p.ledger.RecordCapital(date, p.cash)
	p.ledger.RecordHoldings(date, p.Holdings())
	if len(tickers) > 0 {
		p.ledger.RecordStatus(date, StatusTraded)
	}
	return nil
}
