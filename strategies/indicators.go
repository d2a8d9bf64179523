package strategies

import (
	"math"

	"github.com/oodoriko/port-sub000/types"
)

// column converts one ticker's window to float64s. Indicator math does not
// need decimal precision; money math stays decimal in the engine.
func column(window *types.Frame, ticker string) []float64 {
	col, ok := window.Values[ticker]
	if !ok {
		return nil
	}
	out := make([]float64, len(col))
	for i, v := range col {
		out[i] = v.InexactFloat64()
	}
	return out
}

func sma(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := sma(values)
	var sum float64
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// ema returns the full exponential moving average series, seeded with the
// first value.
func ema(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsi is Wilder's relative strength index over the last period changes.
// Returns 50 when there is not enough data.
func rsi(values []float64, period int) float64 {
	if len(values) < period+1 {
		return 50
	}
	recent := values[len(values)-period-1:]
	var gains, losses float64
	for i := 1; i < len(recent); i++ {
		change := recent[i] - recent[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}
	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}
