package strategies

import (
	"github.com/oodoriko/port-sub000/types"
)

const (
	zscorePeriod    = 20
	zscoreThreshold = 1.0
)

// ZScoreFilter is a confirming vote: it only speaks up when the latest
// close sits more than a standard deviation from its recent mean. Adding it
// to a strategy set switches the voter to sum voting, so it can tip or veto
// the directional strategies without ever leading on its own.
type ZScoreFilter struct{}

func NewZScoreFilter() *ZScoreFilter { return &ZScoreFilter{} }

func (s *ZScoreFilter) Name() string               { return "zscore_filter" }
func (s *ZScoreFilter) PriceKind() types.PriceKind { return types.PriceClose }
func (s *ZScoreFilter) IsFilter() bool             { return true }
func (s *ZScoreFilter) MinWindow() int             { return zscorePeriod }

func (s *ZScoreFilter) Signals(window *types.Frame) map[string]types.Signal {
	signals := make(map[string]types.Signal)
	if len(window.Dates) < s.MinWindow() {
		return signals
	}
	for _, ticker := range window.Tickers() {
		prices := column(window, ticker)
		recent := prices[len(prices)-zscorePeriod:]

		sd := stddev(recent)
		if sd == 0 {
			continue
		}
		z := (prices[len(prices)-1] - sma(recent)) / sd
		switch {
		case z > zscoreThreshold:
			signals[ticker] = types.SignalBuy
		case z < -zscoreThreshold:
			signals[ticker] = types.SignalSell
		}
	}
	return signals
}

func (s *ZScoreFilter) SignalsBatch(frame *types.Frame) *types.SignalFrame {
	return signalsBatch(frame, s.MinWindow(), s.Signals)
}
