package engine

import (
	"errors"
	"fmt"

	"github.com/oodoriko/port-sub000/types"
	"github.com/shopspring/decimal"
)

// Configuration errors are fatal and surface at construction, never mid-run.
var (
	ErrAmbiguousCapitalGrowth  = errors.New("both capital growth amount and percent configured")
	ErrOptimizerNotImplemented = errors.New("optimizer allocation not implemented")
)

// AllocationMethod is the closed set of capital allocation policies.
type AllocationMethod int

const (
	AllocationEqual AllocationMethod = iota
	AllocationMarketCapPriority
	AllocationVolumePriority
	AllocationOptimizer
)

func (m AllocationMethod) String() string {
	switch m {
	case AllocationEqual:
		return "equal"
	case AllocationMarketCapPriority:
		return "max_market_cap"
	case AllocationVolumePriority:
		return "highest_volume"
	case AllocationOptimizer:
		return "optimizer"
	}
	return fmt.Sprintf("AllocationMethod(%d)", int(m))
}

func ParseAllocationMethod(s string) (AllocationMethod, error) {
	switch s {
	case "equal":
		return AllocationEqual, nil
	case "max_market_cap":
		return AllocationMarketCapPriority, nil
	case "highest_volume":
		return AllocationVolumePriority, nil
	case "optimizer":
		return AllocationOptimizer, nil
	}
	return 0, fmt.Errorf("invalid capital allocation method %q", s)
}

// PortfolioConfig is the immutable per-run capital setup. Growth amount and
// growth percent are mutually exclusive.
type PortfolioConfig struct {
	initialCapital      decimal.Decimal
	capitalGrowthAmount decimal.Decimal
	capitalGrowthPct    decimal.Decimal
	capitalGrowthFreq   types.Frequency
}

func NewPortfolioConfig(initialCapital, growthAmount, growthPct decimal.Decimal, freq types.Frequency) (*PortfolioConfig, error) {
	if growthAmount.IsPositive() && growthPct.IsPositive() {
		return nil, ErrAmbiguousCapitalGrowth
	}
	return &PortfolioConfig{
		initialCapital:      initialCapital,
		capitalGrowthAmount: growthAmount,
		capitalGrowthPct:    growthPct,
		capitalGrowthFreq:   freq,
	}, nil
}

// ConstraintsConfig is the immutable per-run risk setup, validated once and
// passed by reference into the evaluator and allocator.
type ConstraintsConfig struct {
	longOnly         bool
	cashPct          decimal.Decimal
	maxPositionSize  decimal.Decimal
	maxDrawdownLimit decimal.Decimal
	maxLongCount     decimal.Decimal
	maxShortCount    decimal.Decimal
	allocationMethod AllocationMethod

	trailingStopLossPct        decimal.Decimal
	trailingUpdateThresholdPct decimal.Decimal
}

func NewConstraintsConfig(
	longOnly bool,
	cashPct, maxPositionSize, maxDrawdownLimit decimal.Decimal,
	maxLongCount, maxShortCount decimal.Decimal,
	method AllocationMethod,
	trailingStopLossPct, trailingUpdateThresholdPct decimal.Decimal,
) (*ConstraintsConfig, error) {
	if method == AllocationOptimizer {
		// Fail fast instead of falling back silently at allocation time.
		return nil, ErrOptimizerNotImplemented
	}
	switch method {
	case AllocationEqual, AllocationMarketCapPriority, AllocationVolumePriority:
	default:
		return nil, fmt.Errorf("invalid capital allocation method %q", method)
	}
	if cashPct.IsNegative() || cashPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("cash pct %s out of range [0, 1)", cashPct)
	}
	if !maxPositionSize.IsPositive() {
		return nil, fmt.Errorf("max position size %s must be positive", maxPositionSize)
	}
	if !trailingStopLossPct.IsPositive() || trailingStopLossPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("trailing stop loss pct %s out of range (0, 1)", trailingStopLossPct)
	}
	return &ConstraintsConfig{
		longOnly:                   longOnly,
		cashPct:                    cashPct,
		maxPositionSize:            maxPositionSize,
		maxDrawdownLimit:           maxDrawdownLimit,
		maxLongCount:               maxLongCount,
		maxShortCount:              maxShortCount,
		allocationMethod:           method,
		trailingStopLossPct:        trailingStopLossPct,
		trailingUpdateThresholdPct: trailingUpdateThresholdPct,
	}, nil
}

func (c *ConstraintsConfig) LongOnly() bool                     { return c.longOnly }
func (c *ConstraintsConfig) AllocationMethod() AllocationMethod { return c.allocationMethod }
func (c *ConstraintsConfig) TrailingStopLossPct() decimal.Decimal {
	return c.trailingStopLossPct
}
