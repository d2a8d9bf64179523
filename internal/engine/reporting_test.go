package engine

import (
	"testing"
	"time"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

func reportLedger() *Ledger {
	ledger := NewLedger()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	// 100k -> 110k -> 99k -> 121k
	for i, value := range []string{"100000", "110000", "99000", "121000"} {
		ledger.RecordValue(day.AddDate(0, 0, i), d(value))
	}
	ledger.RecordBuy(day, "AAPL", TradeRecord{Shares: d("100"), Proceeds: d("-10000"), Cost: d("120")})
	ledger.RecordSell(day.AddDate(0, 0, 3), "AAPL", TradeRecord{Shares: d("-100"), Proceeds: d("12000"), Cost: d("80")})
	ledger.RecordStopLoss(day.AddDate(0, 0, 2), "MSFT", TradeRecord{Shares: d("-50"), Proceeds: d("9000"), Cost: d("50")})
	ledger.RecordStatus(day, StatusTraded)
	ledger.RecordStatus(day.AddDate(0, 0, 1), StatusNoTrade)
	ledger.RecordStatus(day.AddDate(0, 0, 2), StatusVetoed)
	ledger.RecordStatus(day.AddDate(0, 0, 3), StatusTraded)
	ledger.RecordExecution(day, "TSLA", types.Execution{Signal: types.SignalSell, Reason: types.ReasonNoShortSell})
	return ledger
}

func TestGenerateReport(t *testing.T) {
	report := GenerateReport("demo", reportLedger(), d("0.03"))

	if report.Days != 4 {
		t.Errorf("Days = %d, want 4", report.Days)
	}
	if !report.FinalValue.Equal(d("121000")) {
		t.Errorf("FinalValue = %v, want 121000", report.FinalValue)
	}
	if report.TotalReturn.Sub(d("0.21")).Abs().GreaterThan(d("0.000001")) {
		t.Errorf("TotalReturn = %v, want 0.21", report.TotalReturn)
	}
	// Peak 110k down to 99k is a 10% drawdown.
	if report.MaxDrawdown.Sub(d("0.1")).Abs().GreaterThan(d("0.000001")) {
		t.Errorf("MaxDrawdown = %v, want 0.1", report.MaxDrawdown)
	}
	if !report.TotalCost.Equal(d("250")) {
		t.Errorf("TotalCost = %v, want 250", report.TotalCost)
	}
	if report.BuyCount != 1 || report.SellCount != 1 || report.StopLossCount != 1 {
		t.Errorf("trade counts = %d/%d/%d, want 1/1/1",
			report.BuyCount, report.SellCount, report.StopLossCount)
	}
	if report.VetoedDays != 1 || report.NoTradeDays != 1 {
		t.Errorf("status counts = %d vetoed / %d no-trade, want 1/1",
			report.VetoedDays, report.NoTradeDays)
	}
	if report.NoShortSellCount != 1 {
		t.Errorf("NoShortSellCount = %d, want 1", report.NoShortSellCount)
	}
	// 2 up days out of 3.
	twoThirds := decimal.NewFromInt(2).Div(decimal.NewFromInt(3))
	if report.WinRate.Sub(twoThirds).Abs().GreaterThan(d("0.000001")) {
		t.Errorf("WinRate = %v, want 2/3", report.WinRate)
	}
	if !report.ProfitFactor.IsPositive() {
		t.Errorf("ProfitFactor = %v, want positive", report.ProfitFactor)
	}
}

func TestGenerateReport_EmptyLedger(t *testing.T) {
	report := GenerateReport("empty", NewLedger(), decimal.Zero)
	if report.Days != 0 {
		t.Errorf("Days = %d, want 0", report.Days)
	}
	if !report.TotalReturn.IsZero() {
		t.Errorf("TotalReturn = %v, want 0", report.TotalReturn)
	}
}

func TestTickerSummaries(t *testing.T) {
	ledger := NewLedger()
	entry := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	exit := entry.AddDate(0, 0, 10)

	lot := types.NewPosition("AAPL", entry, d("100"), d("50"), d("0.1"))
	lot.Close(exit, d("110"), types.ExitStopLoss)
	ledger.RecordClosedPositions(exit, "AAPL", []*types.Position{lot})

	summaries := TickerSummaries(ledger)
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	s := summaries[0]
	if s.Ticker != "AAPL" || s.Trades != 1 || s.StopLosses != 1 {
		t.Errorf("summary = %+v", s)
	}
	if !s.RealizedPnL.Equal(d("500")) {
		t.Errorf("RealizedPnL = %v, want 500", s.RealizedPnL)
	}
	if !s.AvgHoldDays.Equal(d("10")) {
		t.Errorf("AvgHoldDays = %v, want 10", s.AvgHoldDays)
	}
}
