package strategies

import (
	"github.com/oodoriko/port-sub000/types"
)

const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
)

// MACDCross votes on moving-average convergence crossovers: buy when the
// MACD line crosses above its signal line, sell when it crosses below.
type MACDCross struct{}

func NewMACDCross() *MACDCross { return &MACDCross{} }

func (s *MACDCross) Name() string               { return "macd_cross" }
func (s *MACDCross) PriceKind() types.PriceKind { return types.PriceClose }
func (s *MACDCross) IsFilter() bool             { return false }

// MinWindow needs the slow EMA warmed up plus the signal line.
func (s *MACDCross) MinWindow() int { return macdSlowPeriod + macdSignalPeriod }

func (s *MACDCross) Signals(window *types.Frame) map[string]types.Signal {
	signals := make(map[string]types.Signal)
	if len(window.Dates) < s.MinWindow() {
		return signals
	}
	for _, ticker := range window.Tickers() {
		prices := column(window, ticker)

		fast := ema(prices, macdFastPeriod)
		slow := ema(prices, macdSlowPeriod)
		macd := make([]float64, len(prices))
		for i := range prices {
			macd[i] = fast[i] - slow[i]
		}
		signal := ema(macd, macdSignalPeriod)

		last := len(prices) - 1
		cur := macd[last] - signal[last]
		prev := macd[last-1] - signal[last-1]
		switch {
		case cur > 0 && prev <= 0:
			signals[ticker] = types.SignalBuy
		case cur < 0 && prev >= 0:
			signals[ticker] = types.SignalSell
		}
	}
	return signals
}

func (s *MACDCross) SignalsBatch(frame *types.Frame) *types.SignalFrame {
	return signalsBatch(frame, s.MinWindow(), s.Signals)
}
