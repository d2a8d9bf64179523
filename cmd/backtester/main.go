package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/oodoriko/port-sub000/config"
	"github.com/oodoriko/port-sub000/internal/cache"
	"github.com/oodoriko/port-sub000/internal/engine"
	"github.com/oodoriko/port-sub000/internal/repository"
)

func main() {
	configPath := flag.String("config", "backtester.yaml", "path to the YAML config")
	scenarioName := flag.String("scenario", "", "run only the named scenario, with progress output")
	historyName := flag.String("history", "", "print cached runs for the named scenario and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	if *historyName != "" {
		if err := printHistory(cfg.Cache.Path, *historyName); err != nil {
			log.Fatal(err)
		}
		return
	}
	scenarios, err := cfg.BuildScenarios()
	if err != nil {
		log.Fatal(err)
	}
	if *scenarioName != "" {
		scenarios = selectScenario(scenarios, *scenarioName)
		if len(scenarios) == 0 {
			log.Fatalf("scenario %q not found in %s", *scenarioName, *configPath)
		}
	}
	if len(scenarios) == 0 {
		log.Fatalf("no scenarios in %s", *configPath)
	}

	db, err := repository.NewDatabase(cfg.Database.URL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	store, err := cache.NewStore(cfg.Cache.Path)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	var results []engine.GridResult
	if len(scenarios) == 1 {
		results, err = runSingle(ctx, &db, scenarios[0])
	} else {
		results, err = engine.RunGrid(ctx, &db, scenarios, cfg.Grid.Workers)
	}
	if err != nil {
		log.Fatal(err)
	}

	for _, res := range results {
		if err := store.SaveReport(ctx, res.RunID, res.Report); err != nil {
			log.Fatal(err)
		}
	}
	if err := exportResults(cfg.Output.Dir, results); err != nil {
		log.Fatal(err)
	}
	printResults(results)
	if len(results) == 1 {
		printTickerSummaries(results[0].Ledger)
	}
}

func selectScenario(scenarios []*engine.Scenario, name string) []*engine.Scenario {
	for _, sc := range scenarios {
		if sc.Name == name {
			return []*engine.Scenario{sc}
		}
	}
	return nil
}

func runSingle(ctx context.Context, db *repository.Database, scenario *engine.Scenario) ([]engine.GridResult, error) {
	eng := engine.NewEngine(db, scenario)
	report, err := eng.Run(ctx)
	if err != nil {
		return nil, err
	}
	return []engine.GridResult{{
		RunID:    uuid.NewString(),
		Scenario: scenario,
		Report:   report,
		Ledger:   eng.Portfolio().Ledger(),
	}}, nil
}

// exportResults writes the value curve and trade log of every run into the
// output dir, one pair of files per run id.
func exportResults(dir string, results []engine.GridResult) error {
	for _, res := range results {
		base := fmt.Sprintf("%s_%s", res.Scenario.Name, res.RunID[:8])
		if err := engine.WriteCurvesCSVFile(filepath.Join(dir, base+"_curves.csv"), res.Ledger); err != nil {
			return err
		}
		if err := engine.WriteTradesCSVFile(filepath.Join(dir, base+"_trades.csv"), res.Ledger); err != nil {
			return err
		}
	}
	return nil
}

func printResults(results []engine.GridResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Scenario", "Final value", "Return", "Annualized", "Sharpe", "Max DD", "Win rate", "Cost", "Trades", "Stops")

	for _, res := range results {
		r := res.Report
		table.Append(
			r.Name,
			"$"+r.FinalValue.StringFixed(2),
			percent(r.TotalReturn),
			percent(r.AnnualizedReturn),
			r.SharpeRatio.StringFixed(2),
			percent(r.MaxDrawdown),
			percent(r.WinRate),
			"$"+r.TotalCost.StringFixed(2),
			fmt.Sprintf("%d", r.BuyCount+r.SellCount+r.StopLossCount),
			fmt.Sprintf("%d", r.StopLossCount),
		)
	}
	table.Render()
}

func printTickerSummaries(ledger *engine.Ledger) {
	summaries := engine.TickerSummaries(ledger)
	if len(summaries) == 0 {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Ticker", "Trades", "Stops", "Avg hold (days)", "Realized PnL")
	for _, s := range summaries {
		table.Append(
			s.Ticker,
			fmt.Sprintf("%d", s.Trades),
			fmt.Sprintf("%d", s.StopLosses),
			s.AvgHoldDays.StringFixed(1),
			"$"+s.RealizedPnL.StringFixed(2),
		)
	}
	table.Render()
}

func printHistory(cachePath, name string) error {
	store, err := cache.NewStore(cachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), name)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Printf("no cached runs for scenario %q\n", name)
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Run", "Saved", "Period", "Final value", "Return", "Sharpe", "Max DD")
	for _, run := range runs {
		table.Append(
			run.RunID[:8],
			run.SavedAt.Format("2006-01-02 15:04"),
			fmt.Sprintf("%s..%s", run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02")),
			"$"+run.FinalValue,
			run.TotalReturn,
			run.SharpeRatio,
			run.MaxDrawdown,
		)
	}
	table.Render()
	return nil
}

func percent(v decimal.Decimal) string {
	return v.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}
