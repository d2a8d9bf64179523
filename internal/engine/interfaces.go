package engine

import (
	"context"
	"time"

	"github.com/oodoriko/port-sub000/types"
)

// dataStore is the external price/product boundary. Implementations must
// return the same trading-date index for every price kind.
type dataStore interface {
	GetConstituents(ctx context.Context, benchmark string) ([]string, error)
	GetProducts(ctx context.Context, tickers []string) ([]types.Product, error)
	GetPrices(ctx context.Context, kind types.PriceKind, tickers []string, start, end time.Time) (*types.Frame, error)
}

// Strategy is a pure signal generator: one vote per ticker from a price
// window. The batch form must match the single form date-by-date, exactly.
type Strategy interface {
	Name() string
	PriceKind() types.PriceKind
	// MinWindow is the number of lookback rows the strategy needs before
	// it emits anything other than hold.
	MinWindow() int
	// IsFilter marks a confirming strategy; any filter in the set switches
	// the voter from plurality to sum voting.
	IsFilter() bool
	Signals(window *types.Frame) map[string]types.Signal
	SignalsBatch(frame *types.Frame) *types.SignalFrame
}
