package strategies

import (
	"github.com/oodoriko/port-sub000/types"
)

const (
	rsiPeriod     = 14
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// RSIReversion is a mean-reversion vote: buy oversold tickers, sell
// overbought ones.
type RSIReversion struct{}

func NewRSIReversion() *RSIReversion { return &RSIReversion{} }

func (s *RSIReversion) Name() string               { return "rsi_reversion" }
func (s *RSIReversion) PriceKind() types.PriceKind { return types.PriceClose }
func (s *RSIReversion) IsFilter() bool             { return false }
func (s *RSIReversion) MinWindow() int             { return rsiPeriod + 1 }

func (s *RSIReversion) Signals(window *types.Frame) map[string]types.Signal {
	signals := make(map[string]types.Signal)
	if len(window.Dates) < s.MinWindow() {
		return signals
	}
	for _, ticker := range window.Tickers() {
		value := rsi(column(window, ticker), rsiPeriod)
		switch {
		case value < rsiOversold:
			signals[ticker] = types.SignalBuy
		case value > rsiOverbought:
			signals[ticker] = types.SignalSell
		}
	}
	return signals
}

func (s *RSIReversion) SignalsBatch(frame *types.Frame) *types.SignalFrame {
	return signalsBatch(frame, s.MinWindow(), s.Signals)
}
