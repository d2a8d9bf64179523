package engine

import (
	"sort"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

// Allocator turns the day's buy list and available cash into concrete share
// quantities. Sizing runs in two passes: a risk-based pass produces
// provisional quantities, then one cost-correction pass shrinks each budget
// by the modeled transaction cost of those quantities. Output is
// deterministic: ranking ties break by ticker.
type Allocator struct {
	cfg      *ConstraintsConfig
	cost     *CostModel
	products map[string]types.Product
}

func NewAllocator(cfg *ConstraintsConfig, cost *CostModel, products map[string]types.Product) *Allocator {
	return &Allocator{cfg: cfg, cost: cost, products: products}
}

// Allocation is the final sizing for one ticker.
type Allocation struct {
	Shares decimal.Decimal
	Cost   decimal.Decimal
}

// Allocate sizes the buys so that total spend plus transaction cost stays
// within available cash and no resulting position exceeds its size cap.
// held carries the current open value per ticker, so the cap applies to
// existing lots plus the new order, not the order alone. Tickers that end
// with zero shares are present in the result with zero quantities.
func (a *Allocator) Allocate(
	cash, portfolioValue decimal.Decimal,
	tickers []string,
	prices, volumes, held map[string]decimal.Decimal,
) (map[string]Allocation, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	one := decimal.NewFromInt(1)
	available := cash.Mul(one.Sub(a.cfg.cashPct))
	if !available.IsPositive() {
		out := make(map[string]Allocation, len(tickers))
		for _, ticker := range tickers {
			out[ticker] = Allocation{}
		}
		return out, nil
	}

	headroom := a.headrooms(portfolioValue, tickers, held)

	switch a.cfg.allocationMethod {
	case AllocationEqual:
		ordered := append([]string(nil), tickers...)
		sort.Strings(ordered)
		return a.allocateEqual(available, ordered, prices, volumes, headroom), nil
	case AllocationMarketCapPriority:
		return a.allocateByPriority(available, a.marketCapPriority(tickers), prices, volumes, headroom), nil
	case AllocationVolumePriority:
		return a.allocateByPriority(available, a.volumePriority(tickers, volumes), prices, volumes, headroom), nil
	case AllocationOptimizer:
		return nil, ErrOptimizerNotImplemented
	}
	return nil, ErrOptimizerNotImplemented
}

// headrooms computes each ticker's remaining room under the position-size
// cap: max position value minus whatever is already held.
func (a *Allocator) headrooms(portfolioValue decimal.Decimal, tickers []string, held map[string]decimal.Decimal) map[string]decimal.Decimal {
	maxPosition := portfolioValue.Mul(a.cfg.maxPositionSize)
	out := make(map[string]decimal.Decimal, len(tickers))
	for _, ticker := range tickers {
		out[ticker] = maxPosition.Sub(held[ticker])
	}
	return out
}

// allocateEqual splits the available cash evenly, capping each budget at
// the ticker's cap headroom. Pass 1 divides each budget by price for a
// provisional quantity; pass 2 re-divides the cost-adjusted budget.
func (a *Allocator) allocateEqual(
	available decimal.Decimal,
	tickers []string,
	prices, volumes, headroom map[string]decimal.Decimal,
) map[string]Allocation {
	slice := available.Div(decimal.NewFromInt(int64(len(tickers))))

	budgets := make(map[string]decimal.Decimal, len(tickers))
	provisional := make(map[string]decimal.Decimal, len(tickers))
	for _, ticker := range tickers {
		budget := decimal.Min(slice, headroom[ticker])
		if !budget.IsPositive() || !prices[ticker].IsPositive() {
			budgets[ticker] = decimal.Zero
			provisional[ticker] = decimal.Zero
			continue
		}
		budgets[ticker] = budget
		provisional[ticker] = budget.Div(prices[ticker])
	}

	costs := a.cost.Costs(provisional, volumes, prices, 1)
	out := make(map[string]Allocation, len(tickers))
	for _, ticker := range tickers {
		out[ticker] = finalShares(budgets[ticker], costs[ticker], prices[ticker], volumes[ticker], a.cost)
	}
	return out
}

// allocateByPriority walks the ranking, giving each ticker as much of the
// remaining cash as its cap headroom allows. The cost-correction pass
// replays the walk against cost-adjusted budgets, then dumps the leftover
// cash into the top-ranked ticker as one extra fill, still inside its
// headroom. Pass 1 carries no dump so the cost estimates only cover budgets
// the walk actually granted.
func (a *Allocator) allocateByPriority(
	available decimal.Decimal,
	priority []string,
	prices, volumes, headroom map[string]decimal.Decimal,
) map[string]Allocation {
	provisional := make(map[string]decimal.Decimal, len(priority))
	remaining := available
	for _, ticker := range priority {
		budget := decimal.Min(remaining, headroom[ticker])
		if !budget.IsPositive() || !prices[ticker].IsPositive() {
			provisional[ticker] = decimal.Zero
			continue
		}
		provisional[ticker] = budget.Div(prices[ticker])
		remaining = remaining.Sub(budget)
	}

	costs := a.cost.Costs(provisional, volumes, prices, 1)
	out := make(map[string]Allocation, len(priority))
	remaining = available
	for _, ticker := range priority {
		budget := decimal.Min(remaining, headroom[ticker])
		alloc := finalShares(budget, costs[ticker], prices[ticker], volumes[ticker], a.cost)
		out[ticker] = alloc
		remaining = remaining.Sub(alloc.Shares.Mul(prices[ticker])).Sub(alloc.Cost)
	}

	// Whatever the cost-corrected walk left over goes to the top-ranked
	// ticker, inside the room its cap leaves.
	if remaining.IsPositive() && len(priority) > 0 {
		top := priority[0]
		if prices[top].IsPositive() {
			room := headroom[top].Sub(out[top].Shares.Mul(prices[top]))
			budget := decimal.Min(remaining, room)
			if budget.IsPositive() {
				est := a.cost.Cost(budget.Div(prices[top]), volumes[top], prices[top], 1)
				extra := finalShares(budget, est, prices[top], volumes[top], a.cost)
				if extra.Shares.IsPositive() {
					out[top] = Allocation{
						Shares: out[top].Shares.Add(extra.Shares),
						Cost:   out[top].Cost.Add(extra.Cost),
					}
				}
			}
		}
	}
	return out
}

// finalShares converts a budget into the pass-2 quantity: budget shrinks by
// the estimated cost, the share count is the adjusted budget at price
// rounded down to whole shares, and the charged cost is re-priced at the
// final quantity. Cost is monotone in shares, so the recomputed cost never
// exceeds the estimate. A budget too small for a single share allocates
// nothing.
func finalShares(budget, estimatedCost, price, volume decimal.Decimal, cost *CostModel) Allocation {
	if !price.IsPositive() {
		return Allocation{}
	}
	adjusted := budget.Sub(estimatedCost)
	if !adjusted.IsPositive() {
		return Allocation{}
	}
	shares := adjusted.Div(price).Floor()
	if !shares.IsPositive() {
		return Allocation{}
	}
	return Allocation{
		Shares: shares,
		Cost:   cost.Cost(shares, volume, price, 1),
	}
}

// marketCapPriority ranks descending by market cap, ties by ticker.
func (a *Allocator) marketCapPriority(tickers []string) []string {
	ordered := append([]string(nil), tickers...)
	sort.Slice(ordered, func(i, j int) bool {
		mi := a.products[ordered[i]].MarketCap
		mj := a.products[ordered[j]].MarketCap
		if !mi.Equal(mj) {
			return mi.GreaterThan(mj)
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}

// volumePriority ranks descending by today's volume, ties by ticker.
func (a *Allocator) volumePriority(tickers []string, volumes map[string]decimal.Decimal) []string {
	ordered := append([]string(nil), tickers...)
	sort.Slice(ordered, func(i, j int) bool {
		vi, vj := volumes[ordered[i]], volumes[ordered[j]]
		if !vi.Equal(vj) {
			return vi.GreaterThan(vj)
		}
		return ordered[i] < ordered[j]
	})
	return ordered
}
