package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oodoriko/port-sub000/types"
)

// Global error declarations.
var (
	ErrBenchmarkNotFound = errors.New("benchmark not found in datasource")
	ErrNoPrices          = errors.New("no prices found in datasource")
	ErrPriceKindUnknown  = errors.New("price kind not supported")
	ErrIncompletePanel   = errors.New("price panel has gaps")
)

type productsRepository interface {
	GetConstituents(ctx context.Context, benchmark string) ([]string, error)
	GetProducts(ctx context.Context, tickers []string) ([]types.Product, error)
}
type pricesRepository interface {
	GetBars(ctx context.Context, column string, tickers []string, start, end time.Time) ([]bar, error)
}

// Database struct that holds the database connection and queries.
type Database struct {
	products productsRepository
	prices   pricesRepository
	conn     *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(dbURL string) (Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return Database{}, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return Database{}, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(context.Background()); err != nil {
		return Database{}, err
	}

	queries := &pgQueries{conn: conn}
	return Database{
		products: queries,
		prices:   queries,
		conn:     conn}, nil
}

// Close releases the connection pool.
func (db *Database) Close() {
	if db.conn != nil {
		db.conn.Close()
	}
}

// pgQueries runs the raw SQL against the pool.
type pgQueries struct {
	conn *pgxpool.Pool
}
