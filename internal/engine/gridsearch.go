package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// GridResult pairs one scenario's report and ledger with the run id it was
// stored under.
type GridResult struct {
	RunID    string
	Scenario *Scenario
	Report   *Report
	Ledger   *Ledger
}

// RunGrid executes every scenario concurrently, at most workers at a time.
// Each scenario gets its own Engine and Portfolio so runs cannot share state.
// The first error cancels the remaining runs.
func RunGrid(ctx context.Context, db dataStore, scenarios []*Scenario, workers int) ([]GridResult, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]GridResult, len(scenarios))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, scenario := range scenarios {
		g.Go(func() error {
			eng := NewEngine(db, scenario)
			eng.SetProgress(false)
			report, err := eng.Run(ctx)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", scenario.Name, err)
			}
			mu.Lock()
			results[i] = GridResult{
				RunID:    uuid.NewString(),
				Scenario: scenario,
				Report:   report,
				Ledger:   eng.Portfolio().Ledger(),
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := append([]GridResult(nil), results...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Report.SharpeRatio.GreaterThan(ranked[j].Report.SharpeRatio)
	})
	return ranked, nil
}
