package strategies

import (
	"fmt"

	"github.com/oodoriko/port-sub000/internal/engine"
	"github.com/oodoriko/port-sub000/types"
)

// New builds a strategy by its registered name. Config files refer to
// strategies by these names.
func New(name string) (engine.Strategy, error) {
	switch name {
	case "macd_cross":
		return NewMACDCross(), nil
	case "rsi_reversion":
		return NewRSIReversion(), nil
	case "bollinger_breakout":
		return NewBollingerBreakout(), nil
	case "zscore_filter":
		return NewZScoreFilter(), nil
	}
	return nil, fmt.Errorf("unknown strategy %q", name)
}

// signalsBatch derives the full signal frame by replaying the per-window
// computation at every date. Batch results therefore match the single-date
// path exactly, by construction.
func signalsBatch(frame *types.Frame, lookback int, compute func(window *types.Frame) map[string]types.Signal) *types.SignalFrame {
	out := &types.SignalFrame{
		Dates:   frame.Dates,
		Signals: make(map[string][]types.Signal, len(frame.Values)),
	}
	for ticker := range frame.Values {
		out.Signals[ticker] = make([]types.Signal, len(frame.Dates))
	}
	for i, date := range frame.Dates {
		window := frame.Window(date, lookback)
		for ticker, sig := range compute(window) {
			out.Signals[ticker][i] = sig
		}
	}
	return out
}
