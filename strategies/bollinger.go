package strategies

import (
	"github.com/oodoriko/port-sub000/types"
)

const (
	bollingerPeriod = 20
	bollingerWidth  = 2.0
)

// BollingerBreakout votes with the trend: buy a close above the upper band,
// sell a close below the lower band.
type BollingerBreakout struct{}

func NewBollingerBreakout() *BollingerBreakout { return &BollingerBreakout{} }

func (s *BollingerBreakout) Name() string               { return "bollinger_breakout" }
func (s *BollingerBreakout) PriceKind() types.PriceKind { return types.PriceClose }
func (s *BollingerBreakout) IsFilter() bool             { return false }
func (s *BollingerBreakout) MinWindow() int             { return bollingerPeriod }

func (s *BollingerBreakout) Signals(window *types.Frame) map[string]types.Signal {
	signals := make(map[string]types.Signal)
	if len(window.Dates) < s.MinWindow() {
		return signals
	}
	for _, ticker := range window.Tickers() {
		prices := column(window, ticker)
		band := prices[len(prices)-bollingerPeriod:]

		mid := sma(band)
		width := bollingerWidth * stddev(band)
		if width == 0 {
			continue
		}
		last := prices[len(prices)-1]
		switch {
		case last > mid+width:
			signals[ticker] = types.SignalBuy
		case last < mid-width:
			signals[ticker] = types.SignalSell
		}
	}
	return signals
}

func (s *BollingerBreakout) SignalsBatch(frame *types.Frame) *types.SignalFrame {
	return signalsBatch(frame, s.MinWindow(), s.Signals)
}
