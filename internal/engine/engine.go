package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

var (
	ErrPriceIndexMismatch = errors.New("price kinds have different trading-date indexes")
	ErrEmptyUniverse      = errors.New("universe is empty after filtering")
)

// Scenario is one fully-specified backtest run.
type Scenario struct {
	Name        string
	Benchmark   string
	Filter      types.UniverseFilter
	Start       time.Time
	End         time.Time
	Strategies  []Strategy
	TieBreaker  types.Signal
	Portfolio   *PortfolioConfig
	Constraints *ConstraintsConfig

	// Batch runs the vectorized signal path; results are identical to the
	// per-date path.
	Batch            bool
	LiquidateOnClose bool
	RiskFreeRate     decimal.Decimal
}

// Engine loads a scenario's data from the store and runs it to a report.
type Engine struct {
	db       dataStore
	scenario *Scenario
	progress bool

	portfolio *Portfolio
}

func NewEngine(db dataStore, scenario *Scenario) *Engine {
	return &Engine{db: db, scenario: scenario, progress: true}
}

// SetProgress toggles the console progress bar (off for grid-search workers).
func (e *Engine) SetProgress(on bool) { e.progress = on }

// Portfolio exposes the run's portfolio after Run, for reporting and caching.
func (e *Engine) Portfolio() *Portfolio { return e.portfolio }

func (e *Engine) Run(ctx context.Context) (*Report, error) {
	universe, products, err := e.loadUniverse(ctx)
	if err != nil {
		return nil, err
	}

	frames, err := e.loadPrices(ctx, universe)
	if err != nil {
		return nil, err
	}

	hasFilter := false
	for _, strat := range e.scenario.Strategies {
		if strat.IsFilter() {
			hasFilter = true
		}
	}
	voter := NewVoter(hasFilter, e.scenario.TieBreaker)

	e.portfolio = NewPortfolio(e.scenario.Name, e.scenario.Portfolio, e.scenario.Constraints, products, len(universe))
	bt := newBacktester(
		e.portfolio, e.scenario.Strategies, voter, universe,
		frames[types.PriceOpen], frames[types.PriceClose],
		frames[types.PriceHigh], frames[types.PriceLow],
		frames[types.PriceVolume],
		e.scenario.LiquidateOnClose, e.progress,
	)

	if e.scenario.Batch {
		err = bt.runBatch()
	} else {
		err = bt.run()
	}
	if err != nil {
		return nil, err
	}

	return GenerateReport(e.scenario.Name, e.portfolio.Ledger(), e.scenario.RiskFreeRate), nil
}

func (e *Engine) loadUniverse(ctx context.Context) ([]string, map[string]types.Product, error) {
	tickers, err := e.db.GetConstituents(ctx, e.scenario.Benchmark)
	if err != nil {
		return nil, nil, fmt.Errorf("load constituents: %w", err)
	}
	products, err := e.db.GetProducts(ctx, tickers)
	if err != nil {
		return nil, nil, fmt.Errorf("load products: %w", err)
	}

	filtered := e.scenario.Filter.Apply(products)
	if len(filtered) == 0 {
		return nil, nil, ErrEmptyUniverse
	}

	universe := make([]string, 0, len(filtered))
	byTicker := make(map[string]types.Product, len(filtered))
	for _, p := range filtered {
		universe = append(universe, p.Ticker)
		byTicker[p.Ticker] = p
	}
	return universe, byTicker, nil
}

func (e *Engine) loadPrices(ctx context.Context, universe []string) (map[types.PriceKind]*types.Frame, error) {
	kinds := []types.PriceKind{types.PriceOpen, types.PriceClose, types.PriceHigh, types.PriceLow, types.PriceVolume}
	frames := make(map[types.PriceKind]*types.Frame, len(kinds))
	for _, kind := range kinds {
		frame, err := e.db.GetPrices(ctx, kind, universe, e.scenario.Start, e.scenario.End)
		if err != nil {
			return nil, fmt.Errorf("load %s prices: %w", kind, err)
		}
		frames[kind] = frame
	}

	// The price source contract is one shared trading-date index.
	base := frames[types.PriceOpen].Dates
	for _, kind := range kinds[1:] {
		dates := frames[kind].Dates
		if len(dates) != len(base) {
			return nil, fmt.Errorf("%w: %s has %d dates, open has %d", ErrPriceIndexMismatch, kind, len(dates), len(base))
		}
		for i := range dates {
			if !dates[i].Equal(base[i]) {
				return nil, fmt.Errorf("%w: %s diverges at %s", ErrPriceIndexMismatch, kind, dates[i].Format("2006-01-02"))
			}
		}
	}
	return frames, nil
}
