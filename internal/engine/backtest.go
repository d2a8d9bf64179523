package engine

import (
	"errors"

	"github.com/oodoriko/port-sub000/types"
	"github.com/schollz/progressbar/v3"
)

var ErrNoTradingDates = errors.New("no trading dates in price data")

// backtester drives one portfolio through the daily cycle: strategy
// signals, voting, then a single Trade call per date. One instance per
// run; never shared.
type backtester struct {
	portfolio  *Portfolio
	strategies []Strategy
	voter      *Voter
	universe   []string

	openPrices  *types.Frame
	closePrices *types.Frame
	highPrices  *types.Frame
	lowPrices   *types.Frame
	volumes     *types.Frame

	liquidateOnClose bool
	progress         bool
}

func newBacktester(
	portfolio *Portfolio,
	strats []Strategy,
	voter *Voter,
	universe []string,
	open, close, high, low, volume *types.Frame,
	liquidateOnClose, progress bool,
) *backtester {
	return &backtester{
		portfolio:        portfolio,
		strategies:       strats,
		voter:            voter,
		universe:         universe,
		openPrices:       open,
		closePrices:      close,
		highPrices:       high,
		lowPrices:        low,
		volumes:          volume,
		liquidateOnClose: liquidateOnClose,
		progress:         progress,
	}
}

func (b *backtester) frameFor(kind types.PriceKind) *types.Frame {
	switch kind {
	case types.PriceOpen:
		return b.openPrices
	case types.PriceHigh:
		return b.highPrices
	case types.PriceLow:
		return b.lowPrices
	case types.PriceVolume:
		return b.volumes
	}
	return b.closePrices
}

func (b *backtester) run() error {
	dates := b.openPrices.Dates
	if len(dates) == 0 {
		return ErrNoTradingDates
	}

	var bar *progressbar.ProgressBar
	if b.progress {
		bar = initProgressBar(len(dates), b.portfolio.Name())
	}

	perStrategy := make([]map[string]types.Signal, len(b.strategies))
	for _, date := range dates {
		for i, strat := range b.strategies {
			window := b.frameFor(strat.PriceKind()).Window(date, strat.MinWindow())
			perStrategy[i] = strat.Signals(window)
		}
		plan := b.voter.Plan(perStrategy, b.universe)

		err := b.portfolio.Trade(date, plan, b.openPrices.Row(date), b.volumes.Row(date))
		if err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if b.liquidateOnClose {
		last := dates[len(dates)-1]
		return b.portfolio.Liquidate(last, b.openPrices.Row(last), b.volumes.Row(last), types.ExitSell)
	}
	return nil
}

// runBatch is the vectorized fast path: every strategy produces its whole
// signal frame up front and the voter combines them per date. The daily
// Trade sequence is unchanged, so results are identical to run().
func (b *backtester) runBatch() error {
	dates := b.openPrices.Dates
	if len(dates) == 0 {
		return ErrNoTradingDates
	}

	frames := make([]*types.SignalFrame, len(b.strategies))
	for i, strat := range b.strategies {
		frames[i] = strat.SignalsBatch(b.frameFor(strat.PriceKind()))
	}
	plans, planDates, err := b.voter.PlanBatch(frames, b.universe)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if b.progress {
		bar = initProgressBar(len(planDates), b.portfolio.Name())
	}
	for _, date := range planDates {
		err := b.portfolio.Trade(date, plans[date.Unix()], b.openPrices.Row(date), b.volumes.Row(date))
		if err != nil {
			return err
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	if b.liquidateOnClose {
		last := planDates[len(planDates)-1]
		return b.portfolio.Liquidate(last, b.openPrices.Row(last), b.volumes.Row(last), types.ExitSell)
	}
	return nil
}

func initProgressBar(maxTicks int, name string) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting "+name+"..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
