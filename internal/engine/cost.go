package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// CostModel estimates the dollar cost of executing a trade from the
// trade's participation rate in the day's volume. The returned cost is a
// magnitude: the same for a buy and a sell of equal size.
type CostModel struct {
	baseVolatility float64
	impactCoeff    float64
	impactExponent float64
	timingFactor   float64
	fixedCost      float64
}

func NewCostModel() *CostModel {
	return &CostModel{
		baseVolatility: 0.02,
		impactCoeff:    0.142,
		impactExponent: 0.6,
		timingFactor:   0.5,
		fixedCost:      0.005,
	}
}

// liquidity factor bands by daily volume
var liquidityBands = []struct {
	upTo   float64
	factor float64
}{
	{100_000, 2.0},
	{500_000, 1.5},
	{1_000_000, 1.2},
	{5_000_000, 1.0},
	{math.Inf(1), 0.8},
}

func liquidityFactor(volume float64) float64 {
	for _, band := range liquidityBands {
		if volume < band.upTo {
			return band.factor
		}
	}
	return 1.0
}

// Cost returns the transaction cost for trading |shares| of one ticker.
// A zero volume counts as taking the whole day's liquidity rather than
// dividing by zero.
func (m *CostModel) Cost(shares, volume, price decimal.Decimal, executionDays float64) decimal.Decimal {
	absShares := shares.Abs()
	if absShares.IsZero() {
		return decimal.Zero
	}

	vol := volume.InexactFloat64()
	participationRate := 1.0
	if vol > 0 {
		participationRate = absShares.InexactFloat64() / vol
	}

	temporaryImpact := math.Pow(math.Abs(participationRate)/executionDays, m.impactExponent) * m.impactCoeff
	timingCost := m.timingFactor * math.Sqrt(executionDays)
	costMultiple := (liquidityFactor(vol) + temporaryImpact + timingCost) * m.baseVolatility

	return absShares.Mul(price).Mul(decimal.NewFromFloat(costMultiple + m.fixedCost))
}

// Costs is the multi-ticker form of Cost, keyed by ticker.
func (m *CostModel) Costs(shares, volumes, prices map[string]decimal.Decimal, executionDays float64) map[string]decimal.Decimal {
	costs := make(map[string]decimal.Decimal, len(shares))
	for ticker, qty := range shares {
		costs[ticker] = m.Cost(qty, volumes[ticker], prices[ticker], executionDays)
	}
	return costs
}
