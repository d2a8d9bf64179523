package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

var day1 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func tradingDay(n int) time.Time { return day1.AddDate(0, 0, n) }

func testPortfolioConfig(t *testing.T, initial, growthAmount, growthPct string) *PortfolioConfig {
	t.Helper()
	cfg, err := NewPortfolioConfig(d(initial), d(growthAmount), d(growthPct), types.Monthly)
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestPortfolio(t *testing.T, constraints *ConstraintsConfig) *Portfolio {
	t.Helper()
	return NewPortfolio("test", testPortfolioConfig(t, "100000", "0", "0"), constraints, testProducts(), 4)
}

func quotes(price string) (map[string]decimal.Decimal, map[string]decimal.Decimal) {
	return map[string]decimal.Decimal{"AAPL": d(price)},
		map[string]decimal.Decimal{"AAPL": d("1000000")}
}

func TestPortfolio_BuyOpensPosition(t *testing.T) {
	p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0", "0.5"))
	prices, volumes := quotes("100")

	err := p.Trade(day1, types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes)
	if err != nil {
		t.Fatal(err)
	}

	holdings := p.Holdings()
	if holdings["AAPL"].LessThan(d("470")) || holdings["AAPL"].GreaterThanOrEqual(d("500")) {
		t.Errorf("holdings = %v, want just under 500 after cost adjustment", holdings["AAPL"])
	}
	if p.Cash().IsNegative() {
		t.Errorf("cash = %v, want non-negative", p.Cash())
	}
	if p.ledger.TradingStatus()[day1] != StatusTraded {
		t.Errorf("status = %v, want traded", p.ledger.TradingStatus()[day1])
	}
	exec := p.ledger.ExecutedPlanHistory()[day1]["AAPL"]
	if !exec.Executed {
		t.Errorf("execution not marked executed: %+v", exec)
	}
}

func TestPortfolio_SellClosesAllLots(t *testing.T) {
	p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0", "0.3"))
	prices, volumes := quotes("100")

	// Two buys on consecutive days layer two lots.
	if err := p.Trade(tradingDay(0), types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if err := p.Trade(tradingDay(1), types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if got := len(p.positions["AAPL"]); got != 2 {
		t.Fatalf("lots = %d, want 2", got)
	}

	if err := p.Trade(tradingDay(2), types.TradingPlan{"AAPL": types.SignalSell}, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if len(p.positions["AAPL"]) != 0 {
		t.Errorf("positions remain after sell: %v", p.positions["AAPL"])
	}

	closed := p.ledger.ClosedPositions()[tradingDay(2)]["AAPL"]
	if len(closed) != 2 {
		t.Fatalf("closed lots = %d, want 2", len(closed))
	}
	for _, lot := range closed {
		if lot.Status != types.PositionClosed || lot.ExitReason != types.ExitSell {
			t.Errorf("lot not closed as sell: %+v", lot)
		}
	}
	if _, ok := p.ledger.SellHistory()[tradingDay(2)]["AAPL"]; !ok {
		t.Error("sell not recorded in sell history")
	}
}

func TestPortfolio_NoShortSellDowngrade(t *testing.T) {
	p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0", "0.5"))
	prices, volumes := quotes("100")

	err := p.Trade(day1, types.TradingPlan{"AAPL": types.SignalSell}, prices, volumes)
	if err != nil {
		t.Fatal(err)
	}

	exec := p.ledger.ExecutedPlanHistory()[day1]["AAPL"]
	if exec.Executed || exec.Reason != types.ReasonNoShortSell {
		t.Errorf("execution = %+v, want no-short-sell downgrade", exec)
	}
	if p.ledger.TradingStatus()[day1] != StatusNoTrade {
		t.Errorf("status = %v, want no-trade", p.ledger.TradingStatus()[day1])
	}
	if !p.Cash().Equal(d("100000")) {
		t.Errorf("cash = %v, want untouched", p.Cash())
	}
}

func TestPortfolio_StopLossForcesClose(t *testing.T) {
	p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0", "0.5"))
	prices, volumes := quotes("100")

	if err := p.Trade(tradingDay(0), types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
		t.Fatal(err)
	}

	// Stop seeded at 90; an 85 print breaches it even while the plan says buy.
	crash, _ := quotes("85")
	if err := p.Trade(tradingDay(1), types.TradingPlan{"AAPL": types.SignalBuy}, crash, volumes); err != nil {
		t.Fatal(err)
	}

	if len(p.positions["AAPL"]) != 0 {
		t.Errorf("positions remain after stop: %v", p.positions["AAPL"])
	}
	rec, ok := p.ledger.StopLossHistory()[tradingDay(1)]["AAPL"]
	if !ok {
		t.Fatal("stop loss not recorded")
	}
	if !rec.Shares.IsNegative() {
		t.Errorf("stop loss shares = %v, want negative", rec.Shares)
	}
	// The same-bar buy signal must not re-open the position.
	if _, rebought := p.ledger.BuyHistory()[tradingDay(1)]["AAPL"]; rebought {
		t.Error("re-entered on the bar that stopped out")
	}
	closed := p.ledger.ClosedPositions()[tradingDay(1)]["AAPL"]
	if len(closed) != 1 || closed[0].ExitReason != types.ExitStopLoss {
		t.Errorf("closed lots = %+v, want one stop-loss close", closed)
	}
}

func TestPortfolio_TrailingStopRatchetsUp(t *testing.T) {
	p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0", "0.5"))
	prices, volumes := quotes("100")

	if err := p.Trade(tradingDay(0), types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
		t.Fatal(err)
	}

	// A 20% rally moves the stop up to 0.9 * 120 = 108.
	rally, _ := quotes("120")
	if err := p.Trade(tradingDay(1), types.TradingPlan{}, rally, volumes); err != nil {
		t.Fatal(err)
	}
	if len(p.positions["AAPL"]) != 1 {
		t.Fatalf("position closed unexpectedly")
	}
	stop := p.positions["AAPL"][0].StopPrice
	if !stop.Equal(d("108")) {
		t.Errorf("stop = %v, want 108 after ratchet", stop)
	}

	// Falling back to 105 breaches the raised stop even though it is well
	// above the entry price.
	dip, _ := quotes("105")
	if err := p.Trade(tradingDay(2), types.TradingPlan{}, dip, volumes); err != nil {
		t.Fatal(err)
	}
	if len(p.positions["AAPL"]) != 0 {
		t.Error("raised stop did not fire on the pullback")
	}
}

func TestPortfolio_DrawdownHaltsBuys(t *testing.T) {
	constraints, err := NewConstraintsConfig(
		true, d("0"), d("0.5"), d("0.2"), d("0"), d("0"),
		AllocationEqual, d("0.5"), d("0.05"),
	)
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPortfolio(t, constraints)
	prices, volumes := quotes("100")

	if err := p.Trade(tradingDay(0), types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
		t.Fatal(err)
	}

	// A crash to 55 stays above the 50 stop but pushes the decline from the
	// running trough past the 20% drawdown limit, so new buys are refused.
	crash := map[string]decimal.Decimal{"AAPL": d("55"), "MSFT": d("55")}
	crashVolumes := map[string]decimal.Decimal{"AAPL": d("1000000"), "MSFT": d("1000000")}
	if err := p.Trade(tradingDay(1), types.TradingPlan{"MSFT": types.SignalBuy}, crash, crashVolumes); err != nil {
		t.Fatal(err)
	}

	exec := p.ledger.ExecutedPlanHistory()[tradingDay(1)]["MSFT"]
	if exec.Executed || exec.Reason != types.ReasonMaxDrawdown {
		t.Errorf("execution = %+v, want max-drawdown downgrade", exec)
	}
	if len(p.positions["MSFT"]) != 0 {
		t.Error("bought through the drawdown halt")
	}
	// The held position is untouched: the halt only suppresses buys.
	if len(p.positions["AAPL"]) != 1 {
		t.Error("drawdown halt should not close existing positions")
	}
}

func TestPortfolio_TradeCountVeto(t *testing.T) {
	constraints, err := NewConstraintsConfig(
		true, d("0"), d("0.5"), d("0.2"), d("0.25"), d("0"),
		AllocationEqual, d("0.1"), d("0.05"),
	)
	if err != nil {
		t.Fatal(err)
	}
	// Universe of 4 with a 25% long cap: one buy allowed, two is a veto.
	p := newTestPortfolio(t, constraints)
	prices := map[string]decimal.Decimal{"AAPL": d("100"), "MSFT": d("200")}
	volumes := map[string]decimal.Decimal{"AAPL": d("1000000"), "MSFT": d("1000000")}

	plan := types.TradingPlan{"AAPL": types.SignalBuy, "MSFT": types.SignalBuy}
	if err := p.Trade(day1, plan, prices, volumes); err != nil {
		t.Fatal(err)
	}

	if p.ledger.TradingStatus()[day1] != StatusVetoed {
		t.Errorf("status = %v, want vetoed", p.ledger.TradingStatus()[day1])
	}
	if len(p.positions) != 0 {
		t.Errorf("positions opened on a vetoed day: %v", p.positions)
	}
	if !p.Cash().Equal(d("100000")) {
		t.Errorf("cash = %v, want untouched", p.Cash())
	}

	// A single buy fits under the cap.
	if err := p.Trade(tradingDay(1), types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if p.ledger.TradingStatus()[tradingDay(1)] != StatusTraded {
		t.Errorf("status = %v, want traded", p.ledger.TradingStatus()[tradingDay(1)])
	}
}

func TestPortfolio_LayeredBuysRespectPositionCap(t *testing.T) {
	p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0", "0.5"))
	prices, volumes := quotes("100")

	// Back-to-back buy signals layer lots; the second must only fill the
	// room left under the cap, not a fresh 50% slice.
	for i := range 2 {
		if err := p.Trade(tradingDay(i), types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
			t.Fatal(err)
		}
	}

	notional := p.Holdings()["AAPL"].Mul(prices["AAPL"])
	cap := p.Value(prices).Mul(d("0.5"))
	if notional.GreaterThan(cap) {
		t.Errorf("position value %v exceeds cap %v after layered buys", notional, cap)
	}
	if got := len(p.positions["AAPL"]); got != 2 {
		t.Errorf("lots = %d, want a second lot inside the remaining headroom", got)
	}
}

func TestPortfolio_PositionCapDowngrade(t *testing.T) {
	p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0", "0.5"))
	prices, volumes := quotes("100")

	if err := p.Trade(tradingDay(0), types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
		t.Fatal(err)
	}

	// The rally lifts the held position past the cap on its own; the repeat
	// buy signal is downgraded instead of layering another lot.
	rally, _ := quotes("110")
	if err := p.Trade(tradingDay(1), types.TradingPlan{"AAPL": types.SignalBuy}, rally, volumes); err != nil {
		t.Fatal(err)
	}

	exec := p.ledger.ExecutedPlanHistory()[tradingDay(1)]["AAPL"]
	if exec.Executed || exec.Reason != types.ReasonPositionSizeCap {
		t.Errorf("execution = %+v, want position-size-cap downgrade", exec)
	}
	if got := len(p.positions["AAPL"]); got != 1 {
		t.Errorf("lots = %d, want the single original lot", got)
	}
}

func TestPortfolio_SellUnheldWhileShortingAllowed(t *testing.T) {
	constraints, err := NewConstraintsConfig(
		false, d("0"), d("0.5"), d("0.2"), d("0"), d("0"),
		AllocationEqual, d("0.1"), d("0.05"),
	)
	if err != nil {
		t.Fatal(err)
	}
	p := newTestPortfolio(t, constraints)
	prices, volumes := quotes("100")

	// With shorting allowed there is no downgrade to hide behind: a sell of
	// an unheld ticker means the plan and the book disagree.
	err = p.Trade(day1, types.TradingPlan{"AAPL": types.SignalSell}, prices, volumes)
	if !errors.Is(err, ErrShortSellNotAllowed) {
		t.Fatalf("Trade() error = %v, want %v", err, ErrShortSellNotAllowed)
	}
	if len(p.positions) != 0 {
		t.Errorf("positions = %v, want none", p.positions)
	}
}

func TestPortfolio_CapitalInjectionOncePerPeriod(t *testing.T) {
	cfg, err := NewPortfolioConfig(d("100000"), d("1000"), decimal.Zero, types.Monthly)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPortfolio("test", cfg, testConstraints(t, AllocationEqual, "0", "0.5"), testProducts(), 4)
	prices, volumes := quotes("100")

	// January: the opening period is funded by initial capital.
	if err := p.Trade(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), types.TradingPlan{}, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if err := p.Trade(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), types.TradingPlan{}, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if !p.Cash().Equal(d("100000")) {
		t.Fatalf("cash = %v, want no injection in the opening period", p.Cash())
	}

	// First trading day of February injects once; later February days do not.
	if err := p.Trade(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), types.TradingPlan{}, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if !p.Cash().Equal(d("101000")) {
		t.Errorf("cash = %v, want 101000 after February injection", p.Cash())
	}
	if err := p.Trade(time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), types.TradingPlan{}, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if !p.Cash().Equal(d("101000")) {
		t.Errorf("cash = %v, want a single injection per month", p.Cash())
	}
}

func TestPortfolio_LiquidateFlattensBook(t *testing.T) {
	p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0", "0.3"))
	prices := map[string]decimal.Decimal{"AAPL": d("100"), "MSFT": d("200")}
	volumes := map[string]decimal.Decimal{"AAPL": d("1000000"), "MSFT": d("1000000")}

	plan := types.TradingPlan{"AAPL": types.SignalBuy, "MSFT": types.SignalBuy}
	if err := p.Trade(tradingDay(0), plan, prices, volumes); err != nil {
		t.Fatal(err)
	}
	if len(p.positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(p.positions))
	}

	if err := p.Liquidate(tradingDay(1), prices, volumes, types.ExitSell); err != nil {
		t.Fatal(err)
	}
	if len(p.positions) != 0 {
		t.Errorf("positions remain after liquidation: %v", p.positions)
	}
	if p.Cash().IsNegative() {
		t.Errorf("cash = %v, want non-negative", p.Cash())
	}
}

func TestPortfolio_DeterministicReplay(t *testing.T) {
	run := func() decimal.Decimal {
		p := newTestPortfolio(t, testConstraints(t, AllocationEqual, "0.05", "0.3"))
		prices := map[string]decimal.Decimal{"AAPL": d("100"), "MSFT": d("200"), "TSLA": d("250")}
		volumes := map[string]decimal.Decimal{"AAPL": d("5000000"), "MSFT": d("300000"), "TSLA": d("90000")}

		plans := []types.TradingPlan{
			{"AAPL": types.SignalBuy, "TSLA": types.SignalBuy},
			{"MSFT": types.SignalBuy},
			{"AAPL": types.SignalSell},
			{},
		}
		for i, plan := range plans {
			if err := p.Trade(tradingDay(i), plan, prices, volumes); err != nil {
				t.Fatal(err)
			}
		}
		return p.Value(prices)
	}

	first := run()
	for range 5 {
		if again := run(); !again.Equal(first) {
			t.Fatalf("replay diverged: %v vs %v", again, first)
		}
	}
}

func TestPortfolio_InsufficientCapitalDowngrade(t *testing.T) {
	cfg, err := NewPortfolioConfig(d("10"), decimal.Zero, decimal.Zero, types.Monthly)
	if err != nil {
		t.Fatal(err)
	}
	p := NewPortfolio("test", cfg, testConstraints(t, AllocationEqual, "0", "0.5"), testProducts(), 4)
	prices, volumes := quotes("100")

	if err := p.Trade(day1, types.TradingPlan{"AAPL": types.SignalBuy}, prices, volumes); err != nil {
		t.Fatal(err)
	}

	exec := p.ledger.ExecutedPlanHistory()[day1]["AAPL"]
	if exec.Executed || exec.Reason != types.ReasonInsufficientCapital {
		t.Errorf("execution = %+v, want insufficient-capital downgrade", exec)
	}
	if len(p.positions) != 0 {
		t.Errorf("opened a position with no capital: %v", p.positions)
	}
}

func TestNewPortfolioConfig_AmbiguousGrowth(t *testing.T) {
	_, err := NewPortfolioConfig(d("100000"), d("1000"), d("0.01"), types.Monthly)
	if !errors.Is(err, ErrAmbiguousCapitalGrowth) {
		t.Errorf("error = %v, want %v", err, ErrAmbiguousCapitalGrowth)
	}
}
