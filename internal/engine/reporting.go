package engine

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

const tradingDaysPerYear = 252.0

// Report is the run summary computed from the ledger's history maps. All
// the ratio metrics are derived from the daily portfolio-value curve; the
// cost and count metrics come from the trade histories.
type Report struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Days      int

	FinalValue       decimal.Decimal
	TotalReturn      decimal.Decimal
	AnnualizedReturn decimal.Decimal
	SharpeRatio      decimal.Decimal
	MaxDrawdown      decimal.Decimal

	WinRate      decimal.Decimal
	AvgWin       decimal.Decimal
	AvgLoss      decimal.Decimal
	ProfitFactor decimal.Decimal

	TotalCost decimal.Decimal

	BuyCount      int
	SellCount     int
	StopLossCount int
	VetoedDays    int
	NoTradeDays   int

	NoShortSellCount         int
	InsufficientCapitalCount int
	DrawdownSuppressedCount  int
}

func GenerateReport(name string, ledger *Ledger, riskFreeRate decimal.Decimal) *Report {
	report := &Report{Name: name}

	dates := ledger.Dates()
	if len(dates) == 0 {
		return report
	}
	report.StartDate = dates[0]
	report.EndDate = dates[len(dates)-1]
	report.Days = len(dates)

	values := make([]float64, len(dates))
	for i, d := range dates {
		values[i] = ledger.PortfolioValueCurve()[d].InexactFloat64()
	}
	report.FinalValue = ledger.PortfolioValueCurve()[report.EndDate]

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		report.TotalReturn, report.AnnualizedReturn = calcReturns(values)
	}()
	go func() {
		defer wg.Done()
		report.SharpeRatio = calcSharpe(values, riskFreeRate.InexactFloat64())
	}()
	go func() {
		defer wg.Done()
		report.MaxDrawdown = calcMaxDrawdown(values)
	}()
	go func() {
		defer wg.Done()
		report.WinRate, report.AvgWin, report.AvgLoss, report.ProfitFactor = calcWinStats(values)
	}()
	wg.Wait()

	report.TotalCost = totalCost(ledger)
	countTrades(ledger, report)
	return report
}

func dailyReturns(values []float64) []float64 {
	var out []float64
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		out = append(out, values[i]/values[i-1]-1)
	}
	return out
}

func calcReturns(values []float64) (decimal.Decimal, decimal.Decimal) {
	if len(values) < 2 || values[0] <= 0 {
		return decimal.Zero, decimal.Zero
	}
	total := values[len(values)-1]/values[0] - 1
	years := float64(len(values)) / tradingDaysPerYear
	annualized := 0.0
	if years > 0 && total > -1 {
		annualized = math.Pow(1+total, 1/years) - 1
	}
	return decimal.NewFromFloat(total), decimal.NewFromFloat(annualized)
}

func calcSharpe(values []float64, annualRiskFree float64) decimal.Decimal {
	returns := dailyReturns(values)
	if len(returns) < 2 {
		return decimal.Zero
	}
	rfDaily := math.Pow(1+annualRiskFree, 1/tradingDaysPerYear) - 1

	var sum float64
	for _, r := range returns {
		sum += r - rfDaily
	}
	mean := sum / float64(len(returns))

	var varianceSum float64
	for _, r := range returns {
		diff := (r - rfDaily) - mean
		varianceSum += diff * diff
	}
	std := math.Sqrt(varianceSum / float64(len(returns)-1))
	if std == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(mean / std * math.Sqrt(tradingDaysPerYear))
}

func calcMaxDrawdown(values []float64) decimal.Decimal {
	peak := 0.0
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return decimal.NewFromFloat(maxDD)
}

func calcWinStats(values []float64) (winRate, avgWin, avgLoss, profitFactor decimal.Decimal) {
	returns := dailyReturns(values)
	if len(returns) == 0 {
		return decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
	}

	var sumWins, sumLosses float64
	winCount, lossCount := 0, 0
	for _, r := range returns {
		switch {
		case r > 0:
			sumWins += r
			winCount++
		case r < 0:
			sumLosses += -r
			lossCount++
		}
	}

	winRate = decimal.NewFromFloat(float64(winCount) / float64(len(returns)))
	if winCount > 0 {
		avgWin = decimal.NewFromFloat(sumWins / float64(winCount))
	}
	if lossCount > 0 {
		avgLoss = decimal.NewFromFloat(sumLosses / float64(lossCount))
	}
	if sumLosses > 0 {
		profitFactor = decimal.NewFromFloat(sumWins / sumLosses)
	}
	return winRate, avgWin, avgLoss, profitFactor
}

func totalCost(ledger *Ledger) decimal.Decimal {
	total := decimal.Zero
	for _, history := range []map[time.Time]map[string]TradeRecord{
		ledger.BuyHistory(), ledger.SellHistory(), ledger.StopLossHistory(),
	} {
		for _, day := range history {
			for _, rec := range day {
				total = total.Add(rec.Cost)
			}
		}
	}
	return total
}

func countTrades(ledger *Ledger, report *Report) {
	for _, day := range ledger.BuyHistory() {
		report.BuyCount += len(day)
	}
	for _, day := range ledger.SellHistory() {
		report.SellCount += len(day)
	}
	for _, day := range ledger.StopLossHistory() {
		report.StopLossCount += len(day)
	}
	for _, status := range ledger.TradingStatus() {
		switch status {
		case StatusVetoed:
			report.VetoedDays++
		case StatusNoTrade:
			report.NoTradeDays++
		}
	}
	for _, day := range ledger.ExecutedPlanHistory() {
		for _, exec := range day {
			switch exec.Reason {
			case types.ReasonNoShortSell:
				report.NoShortSellCount++
			case types.ReasonInsufficientCapital:
				report.InsufficientCapitalCount++
			case types.ReasonMaxDrawdown:
				report.DrawdownSuppressedCount++
			}
		}
	}
}

// TickerSummary aggregates the closed-position history for one ticker.
type TickerSummary struct {
	Ticker        string
	Trades        int
	StopLosses    int
	AvgHoldDays   decimal.Decimal
	RealizedPnL   decimal.Decimal
	TotalExitSize decimal.Decimal
}

// TickerSummaries rolls up every closed lot by ticker, sorted by ticker.
func TickerSummaries(ledger *Ledger) []TickerSummary {
	byTicker := make(map[string]*TickerSummary)
	for _, day := range ledger.ClosedPositions() {
		for ticker, lots := range day {
			summary, ok := byTicker[ticker]
			if !ok {
				summary = &TickerSummary{Ticker: ticker}
				byTicker[ticker] = summary
			}
			for _, lot := range lots {
				summary.Trades++
				if lot.ExitReason == types.ExitStopLoss {
					summary.StopLosses++
				}
				holdDays := decimal.NewFromInt(int64(lot.ExitDate.Sub(lot.EntryDate).Hours() / 24))
				summary.AvgHoldDays = summary.AvgHoldDays.Add(holdDays)
				summary.RealizedPnL = summary.RealizedPnL.Add(
					lot.ExitPrice.Sub(lot.EntryPrice).Mul(lot.ExitShares))
				summary.TotalExitSize = summary.TotalExitSize.Add(lot.ExitShares)
			}
		}
	}

	out := make([]TickerSummary, 0, len(byTicker))
	for _, summary := range byTicker {
		if summary.Trades > 0 {
			summary.AvgHoldDays = summary.AvgHoldDays.Div(decimal.NewFromInt(int64(summary.Trades)))
		}
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
