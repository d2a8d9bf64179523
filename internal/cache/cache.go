package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oodoriko/port-sub000/internal/engine"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id            TEXT PRIMARY KEY,
    name              TEXT     NOT NULL,
    start_date        DATETIME NOT NULL,
    end_date          DATETIME NOT NULL,
    days              INTEGER  NOT NULL DEFAULT 0,
    final_value       TEXT     NOT NULL,
    total_return      TEXT     NOT NULL,
    annualized_return TEXT     NOT NULL,
    sharpe_ratio      TEXT     NOT NULL,
    max_drawdown      TEXT     NOT NULL,
    total_cost        TEXT     NOT NULL,
    buy_count         INTEGER  NOT NULL DEFAULT 0,
    sell_count        INTEGER  NOT NULL DEFAULT 0,
    stop_loss_count   INTEGER  NOT NULL DEFAULT 0,
    saved_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_name  ON runs(name);
CREATE INDEX IF NOT EXISTS idx_runs_saved ON runs(saved_at DESC);
`

const retentionRuns = 90 * 24 * time.Hour

var ErrRunNotFound = errors.New("run not found in cache")

// Store persists run reports in SQLite (pure Go, no CGo). Decimal fields
// are stored as text so nothing is lost to float rounding.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at the given path, applies the
// schema and prunes stale runs.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache.NewStore: open %q: %w", path, err)
	}
	// SQLite is single-writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache.NewStore: apply schema: %w", err)
	}

	s := &Store{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveReport upserts one run's report under its run id.
func (s *Store) SaveReport(ctx context.Context, runID string, report *engine.Report) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
			(run_id, name, start_date, end_date, days, final_value,
			 total_return, annualized_return, sharpe_ratio, max_drawdown,
			 total_cost, buy_count, sell_count, stop_loss_count, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			name              = excluded.name,
			start_date        = excluded.start_date,
			end_date          = excluded.end_date,
			days              = excluded.days,
			final_value       = excluded.final_value,
			total_return      = excluded.total_return,
			annualized_return = excluded.annualized_return,
			sharpe_ratio      = excluded.sharpe_ratio,
			max_drawdown      = excluded.max_drawdown,
			total_cost        = excluded.total_cost,
			buy_count         = excluded.buy_count,
			sell_count        = excluded.sell_count,
			stop_loss_count   = excluded.stop_loss_count,
			saved_at          = excluded.saved_at
	`,
		runID, report.Name, report.StartDate.UTC(), report.EndDate.UTC(), report.Days,
		report.FinalValue.String(),
		report.TotalReturn.String(), report.AnnualizedReturn.String(),
		report.SharpeRatio.String(), report.MaxDrawdown.String(),
		report.TotalCost.String(),
		report.BuyCount, report.SellCount, report.StopLossCount, now,
	)
	if err != nil {
		return fmt.Errorf("cache.SaveReport: upsert %s: %w", runID, err)
	}
	return nil
}

// CachedRun is one persisted run summary.
type CachedRun struct {
	RunID            string
	Name             string
	StartDate        time.Time
	EndDate          time.Time
	Days             int
	FinalValue       string
	TotalReturn      string
	AnnualizedReturn string
	SharpeRatio      string
	MaxDrawdown      string
	TotalCost        string
	BuyCount         int
	SellCount        int
	StopLossCount    int
	SavedAt          time.Time
}

// GetRun loads one run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (*CachedRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, name, start_date, end_date, days, final_value,
		       total_return, annualized_return, sharpe_ratio, max_drawdown,
		       total_cost, buy_count, sell_count, stop_loss_count, saved_at
		FROM runs WHERE run_id = ?
	`, runID)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("cache.GetRun: %w", err)
	}
	return run, nil
}

// ListRuns returns every run with the given scenario name, newest first.
func (s *Store) ListRuns(ctx context.Context, name string) ([]CachedRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, name, start_date, end_date, days, final_value,
		       total_return, annualized_return, sharpe_ratio, max_drawdown,
		       total_cost, buy_count, sell_count, stop_loss_count, saved_at
		FROM runs WHERE name = ?
		ORDER BY saved_at DESC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("cache.ListRuns: query: %w", err)
	}
	defer rows.Close()

	var runs []CachedRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("cache.ListRuns: scan row: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*CachedRun, error) {
	var run CachedRun
	err := row.Scan(
		&run.RunID, &run.Name, &run.StartDate, &run.EndDate, &run.Days,
		&run.FinalValue, &run.TotalReturn, &run.AnnualizedReturn,
		&run.SharpeRatio, &run.MaxDrawdown, &run.TotalCost,
		&run.BuyCount, &run.SellCount, &run.StopLossCount, &run.SavedAt,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// pruneOld deletes stale runs to keep the DB light.
func (s *Store) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionRuns)
	s.db.ExecContext(ctx, `DELETE FROM runs WHERE saved_at < ?`, cutoff)
}
