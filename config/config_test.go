package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oodoriko/port-sub000/internal/engine"
)

const sampleYAML = `
database:
  url: postgres://localhost/backtests
scenarios:
  - name: momentum
    benchmark: SPX
    start: "2023-01-02"
    end: "2024-12-31"
    strategies: [macd_cross, zscore_filter]
    tie_breaker: 0
    batch: true
    liquidate_on_close: true
    risk_free_rate: "0.03"
    universe:
      exclude_sectors: [Utilities]
    portfolio:
      initial_capital: "100000"
      capital_growth_amount: "1000"
      capital_growth_frequency: monthly
    constraints:
      long_only: true
      cash_pct: "0.05"
      max_position_size: "0.2"
      max_drawdown_limit: "0.2"
      max_long_count: "0.3"
      max_short_count: "0"
      allocation_method: equal
      trailing_stop_loss_pct: "0.08"
      trailing_update_threshold_pct: "0.03"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backtester.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/backtests", cfg.Database.URL)
	// Defaults fill in what the file omits.
	assert.Equal(t, "backtests.db", cfg.Cache.Path)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, 4, cfg.Grid.Workers)
	require.Len(t, cfg.Scenarios, 1)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://prod/backtests")
	t.Setenv("GRID_WORKERS", "8")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "postgres://prod/backtests", cfg.Database.URL)
	assert.Equal(t, 8, cfg.Grid.Workers)
}

func TestBuildScenarios(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	scenarios, err := cfg.BuildScenarios()
	require.NoError(t, err)
	require.Len(t, scenarios, 1)

	sc := scenarios[0]
	assert.Equal(t, "momentum", sc.Name)
	assert.Equal(t, "SPX", sc.Benchmark)
	assert.Len(t, sc.Strategies, 2)
	assert.True(t, sc.Batch)
	assert.True(t, sc.Constraints.LongOnly())
	assert.Equal(t, engine.AllocationEqual, sc.Constraints.AllocationMethod())
	assert.Equal(t, 2023, sc.Start.Year())
}

func TestBuildScenarios_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(sc *ScenarioConfig)
		wantErr string
	}{
		{
			"unknown strategy",
			func(sc *ScenarioConfig) { sc.Strategies = []string{"donchian"} },
			"unknown strategy",
		},
		{
			"bad start date",
			func(sc *ScenarioConfig) { sc.Start = "01/02/2023" },
			"parse start date",
		},
		{
			"optimizer allocation",
			func(sc *ScenarioConfig) { sc.Constraints.AllocationMethod = "optimizer" },
			engine.ErrOptimizerNotImplemented.Error(),
		},
		{
			"ambiguous capital growth",
			func(sc *ScenarioConfig) { sc.Portfolio.CapitalGrowthPct = sc.Portfolio.CapitalGrowthAmount },
			engine.ErrAmbiguousCapitalGrowth.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleYAML))
			require.NoError(t, err)
			tt.mutate(&cfg.Scenarios[0])

			_, err = cfg.BuildScenarios()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
