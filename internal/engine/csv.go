package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

func sortedTickers(day map[string]TradeRecord) []string {
	tickers := make([]string, 0, len(day))
	for ticker := range day {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

// WriteCurvesCSVFile writes the daily value and cash curves to a CSV file.
func WriteCurvesCSVFile(path string, ledger *Ledger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create curves file: %w", err)
	}
	defer f.Close()

	return writeCurvesCSV(f, ledger)
}

// writeCurvesCSV writes the curves to any io.Writer as CSV.
// You can pass os.Stdout for debugging, or a file.
func writeCurvesCSV(w io.Writer, ledger *Ledger) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"date", "portfolio_value", "cash", "status"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	values := ledger.PortfolioValueCurve()
	cash := ledger.CapitalCurve()
	status := ledger.TradingStatus()
	for _, date := range ledger.Dates() {
		record := []string{
			date.Format(time.DateOnly),
			values[date].String(),
			cash[date].String(),
			fmt.Sprintf("%d", status[date]),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteTradesCSVFile writes every executed buy, sell and stop-loss to a CSV
// file, one row per ticker per date.
func WriteTradesCSVFile(path string, ledger *Ledger) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create trades file: %w", err)
	}
	defer f.Close()

	return writeTradesCSV(f, ledger)
}

func writeTradesCSV(w io.Writer, ledger *Ledger) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"date", "ticker", "side", "shares", "proceeds", "cost"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	sides := []struct {
		name    string
		history map[time.Time]map[string]TradeRecord
	}{
		{"buy", ledger.BuyHistory()},
		{"sell", ledger.SellHistory()},
		{"stop_loss", ledger.StopLossHistory()},
	}
	for _, date := range ledger.Dates() {
		for _, side := range sides {
			day, ok := side.history[date]
			if !ok {
				continue
			}
			for _, ticker := range sortedTickers(day) {
				rec := day[ticker]
				record := []string{
					date.Format(time.DateOnly),
					ticker,
					side.name,
					rec.Shares.String(),
					rec.Proceeds.String(),
					rec.Cost.String(),
				}
				if err := cw.Write(record); err != nil {
					return fmt.Errorf("write record: %w", err)
				}
			}
		}
	}

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
