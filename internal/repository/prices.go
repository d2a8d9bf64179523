package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

var kindToColumn = map[types.PriceKind]string{
	types.PriceOpen:   "open",
	types.PriceClose:  "close",
	types.PriceHigh:   "high",
	types.PriceLow:    "low",
	types.PriceVolume: "volume",
}

// bar is one ticker's value for one price kind on one trading date.
type bar struct {
	Ticker string
	Date   time.Time
	Value  decimal.Decimal
}

// GetPrices loads one price kind for the given tickers into a Frame. Every
// ticker must cover the full trading-date index or the panel is rejected.
func (db *Database) GetPrices(ctx context.Context, kind types.PriceKind, tickers []string, start, end time.Time) (*types.Frame, error) {
	column, ok := kindToColumn[kind]
	if !ok {
		return nil, fmt.Errorf("%s %w", kind, ErrPriceKindUnknown)
	}

	bars, err := db.prices.GetBars(ctx, column, tickers, start, end)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoPrices
		}
		return nil, err
	}
	if len(bars) == 0 {
		return nil, ErrNoPrices
	}
	return buildFrame(bars, tickers)
}

func buildFrame(bars []bar, tickers []string) (*types.Frame, error) {
	var dates []time.Time
	dateIndex := make(map[time.Time]int)
	for _, b := range bars {
		if _, seen := dateIndex[b.Date]; !seen {
			dateIndex[b.Date] = len(dates)
			dates = append(dates, b.Date)
		}
	}

	values := make(map[string][]decimal.Decimal, len(tickers))
	filled := make(map[string][]bool, len(tickers))
	for _, ticker := range tickers {
		values[ticker] = make([]decimal.Decimal, len(dates))
		filled[ticker] = make([]bool, len(dates))
	}
	for _, b := range bars {
		col, ok := values[b.Ticker]
		if !ok {
			continue
		}
		i := dateIndex[b.Date]
		col[i] = b.Value
		filled[b.Ticker][i] = true
	}

	for ticker, flags := range filled {
		for i, ok := range flags {
			if !ok {
				return nil, fmt.Errorf("%w: %s missing %s",
					ErrIncompletePanel, ticker, dates[i].Format(time.DateOnly))
			}
		}
	}
	return &types.Frame{Dates: dates, Values: values}, nil
}

func (q *pgQueries) GetBars(ctx context.Context, column string, tickers []string, start, end time.Time) ([]bar, error) {
	// column comes from kindToColumn, never from input.
	sql := fmt.Sprintf(`
SELECT ticker, trade_date, %s
FROM daily_bars
WHERE ticker = ANY($1) AND trade_date BETWEEN $2 AND $3
ORDER BY trade_date, ticker`, column)

	rows, err := q.conn.Query(ctx, sql, tickers, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []bar
	for rows.Next() {
		var b bar
		if err := rows.Scan(&b.Ticker, &b.Date, &b.Value); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}
