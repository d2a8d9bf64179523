package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/oodoriko/port-sub000/types"
)

const getConstituentsSQL = `
SELECT ticker
FROM benchmark_constituents
WHERE benchmark = $1
ORDER BY ticker`

const getProductsSQL = `
SELECT ticker, name, sector, country, market_cap
FROM products
WHERE ticker = ANY($1)
ORDER BY ticker`

// GetConstituents retrieves the ticker membership of a benchmark index.
func (db *Database) GetConstituents(ctx context.Context, benchmark string) ([]string, error) {
	tickers, err := db.products.GetConstituents(ctx, benchmark)
	if err != nil {
		return nil, err
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("benchmark %s %w", benchmark, ErrBenchmarkNotFound)
	}
	return tickers, nil
}

// GetProducts retrieves the reference data for the given tickers.
func (db *Database) GetProducts(ctx context.Context, tickers []string) ([]types.Product, error) {
	return db.products.GetProducts(ctx, tickers)
}

func (q *pgQueries) GetConstituents(ctx context.Context, benchmark string) ([]string, error) {
	rows, err := q.conn.Query(ctx, getConstituentsSQL, benchmark)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, err
		}
		tickers = append(tickers, ticker)
	}
	return tickers, rows.Err()
}

func (q *pgQueries) GetProducts(ctx context.Context, tickers []string) ([]types.Product, error) {
	rows, err := q.conn.Query(ctx, getProductsSQL, tickers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []types.Product
	for rows.Next() {
		var p types.Product
		if err := rows.Scan(&p.Ticker, &p.Name, &p.Sector, &p.Country, &p.MarketCap); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
