package types

import "github.com/shopspring/decimal"

// Product is the static metadata for one ticker, used for universe
// filtering and market-cap priority allocation.
type Product struct {
	Ticker    string          `json:"ticker"`
	Name      string          `json:"name"`
	Sector    string          `json:"sector"`
	Country   string          `json:"country"`
	MarketCap decimal.Decimal `json:"marketCap"`
}

// UniverseFilter narrows a benchmark's constituents before a run.
type UniverseFilter struct {
	ExcludeSectors   []string
	IncludeCountries []string
	MinMarketCap     decimal.Decimal
	MaxMarketCap     decimal.Decimal
}

// Apply returns the products passing the filter, in input order.
func (uf *UniverseFilter) Apply(products []Product) []Product {
	excluded := make(map[string]bool, len(uf.ExcludeSectors))
	for _, s := range uf.ExcludeSectors {
		excluded[s] = true
	}
	included := make(map[string]bool, len(uf.IncludeCountries))
	for _, c := range uf.IncludeCountries {
		included[c] = true
	}

	var out []Product
	for _, p := range products {
		if excluded[p.Sector] {
			continue
		}
		if len(included) > 0 && !included[p.Country] {
			continue
		}
		if uf.MinMarketCap.IsPositive() && p.MarketCap.LessThan(uf.MinMarketCap) {
			continue
		}
		if uf.MaxMarketCap.IsPositive() && p.MarketCap.GreaterThan(uf.MaxMarketCap) {
			continue
		}
		out = append(out, p)
	}
	return out
}
