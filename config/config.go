package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/oodoriko/port-sub000/internal/engine"
	"github.com/oodoriko/port-sub000/strategies"
	"github.com/oodoriko/port-sub000/types"
)

// Config is the full backtester configuration: where the data lives,
// where results go, and the list of scenarios to run.
type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Cache     CacheConfig      `yaml:"cache"`
	Output    OutputConfig     `yaml:"output"`
	Grid      GridConfig       `yaml:"grid"`
	Scenarios []ScenarioConfig `yaml:"scenarios"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type CacheConfig struct {
	Path string `yaml:"path"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// GridConfig controls the concurrent scenario fan-out.
type GridConfig struct {
	Workers int `yaml:"workers"`
}

// ScenarioConfig is one backtest run as written in YAML.
type ScenarioConfig struct {
	Name             string          `yaml:"name"`
	Benchmark        string          `yaml:"benchmark"`
	Start            string          `yaml:"start"` // 2006-01-02
	End              string          `yaml:"end"`
	Strategies       []string        `yaml:"strategies"`
	TieBreaker       int             `yaml:"tie_breaker"` // -1 | 0 | 1
	Batch            bool            `yaml:"batch"`
	LiquidateOnClose bool            `yaml:"liquidate_on_close"`
	RiskFreeRate     decimal.Decimal `yaml:"risk_free_rate"`

	Universe    UniverseConfig       `yaml:"universe"`
	Portfolio   PortfolioYAMLConfig  `yaml:"portfolio"`
	Constraints ConstraintYAMLConfig `yaml:"constraints"`
}

type UniverseConfig struct {
	ExcludeSectors   []string        `yaml:"exclude_sectors"`
	IncludeCountries []string        `yaml:"include_countries"`
	MinMarketCap     decimal.Decimal `yaml:"min_market_cap"`
	MaxMarketCap     decimal.Decimal `yaml:"max_market_cap"`
}

type PortfolioYAMLConfig struct {
	InitialCapital         decimal.Decimal `yaml:"initial_capital"`
	CapitalGrowthAmount    decimal.Decimal `yaml:"capital_growth_amount"`
	CapitalGrowthPct       decimal.Decimal `yaml:"capital_growth_pct"`
	CapitalGrowthFrequency string          `yaml:"capital_growth_frequency"`
}

type ConstraintYAMLConfig struct {
	LongOnly                   bool            `yaml:"long_only"`
	CashPct                    decimal.Decimal `yaml:"cash_pct"`
	MaxPositionSize            decimal.Decimal `yaml:"max_position_size"`
	MaxDrawdownLimit           decimal.Decimal `yaml:"max_drawdown_limit"`
	MaxLongCount               decimal.Decimal `yaml:"max_long_count"`
	MaxShortCount              decimal.Decimal `yaml:"max_short_count"`
	AllocationMethod           string          `yaml:"allocation_method"`
	TrailingStopLossPct        decimal.Decimal `yaml:"trailing_stop_loss_pct"`
	TrailingUpdateThresholdPct decimal.Decimal `yaml:"trailing_update_threshold_pct"`
}

// Load reads the YAML file and the .env file if present. Environment
// variables win over YAML for the keys they cover.
func Load(path string) (*Config, error) {
	// Load .env if present (missing file is fine).
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("GRID_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Grid.Workers = n
		}
	}
}

func setDefaults(cfg *Config) {
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = "backtests.db"
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "out"
	}
	if cfg.Grid.Workers <= 0 {
		cfg.Grid.Workers = 4
	}
}

// BuildScenarios converts every YAML scenario into a validated
// engine.Scenario, instantiating its strategies by name.
func (c *Config) BuildScenarios() ([]*engine.Scenario, error) {
	scenarios := make([]*engine.Scenario, 0, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		scenario, err := sc.build()
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
		}
		scenarios = append(scenarios, scenario)
	}
	return scenarios, nil
}

func (sc *ScenarioConfig) build() (*engine.Scenario, error) {
	start, err := time.Parse(time.DateOnly, sc.Start)
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(time.DateOnly, sc.End)
	if err != nil {
		return nil, fmt.Errorf("parse end date: %w", err)
	}

	strats := make([]engine.Strategy, 0, len(sc.Strategies))
	for _, name := range sc.Strategies {
		strat, err := strategies.New(name)
		if err != nil {
			return nil, err
		}
		strats = append(strats, strat)
	}

	growthFreq := types.Monthly
	if sc.Portfolio.CapitalGrowthFrequency != "" {
		growthFreq, err = types.ParseFrequency(sc.Portfolio.CapitalGrowthFrequency)
		if err != nil {
			return nil, err
		}
	}
	portfolio, err := engine.NewPortfolioConfig(
		sc.Portfolio.InitialCapital,
		sc.Portfolio.CapitalGrowthAmount,
		sc.Portfolio.CapitalGrowthPct,
		growthFreq,
	)
	if err != nil {
		return nil, err
	}

	method, err := engine.ParseAllocationMethod(sc.Constraints.AllocationMethod)
	if err != nil {
		return nil, err
	}
	constraints, err := engine.NewConstraintsConfig(
		sc.Constraints.LongOnly,
		sc.Constraints.CashPct,
		sc.Constraints.MaxPositionSize,
		sc.Constraints.MaxDrawdownLimit,
		sc.Constraints.MaxLongCount,
		sc.Constraints.MaxShortCount,
		method,
		sc.Constraints.TrailingStopLossPct,
		sc.Constraints.TrailingUpdateThresholdPct,
	)
	if err != nil {
		return nil, err
	}

	return &engine.Scenario{
		Name:      sc.Name,
		Benchmark: sc.Benchmark,
		Filter: types.UniverseFilter{
			ExcludeSectors:   sc.Universe.ExcludeSectors,
			IncludeCountries: sc.Universe.IncludeCountries,
			MinMarketCap:     sc.Universe.MinMarketCap,
			MaxMarketCap:     sc.Universe.MaxMarketCap,
		},
		Start:            start,
		End:              end,
		Strategies:       strats,
		TieBreaker:       types.Signal(sc.TieBreaker),
		Portfolio:        portfolio,
		Constraints:      constraints,
		Batch:            sc.Batch,
		LiquidateOnClose: sc.LiquidateOnClose,
		RiskFreeRate:     sc.RiskFreeRate,
	}, nil
}
