package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// EMA calculates the Exponential Moving Average of a series.
//
// EMA Formula:
//
//	EMA_0     = Value_0
//	EMA_today = (Value_today × alpha) + (EMA_yesterday × (1 - alpha))
//	where alpha = 2 / (span + 1)
//
// The recursion is seeded with the first value and uses no bias adjustment,
// so the output has the same length as the input and no warm-up gap.
//
// Args:
//
//	values: Series to smooth (must not contain NaN)
//	span:   Smoothing span (>= 1)
//
// Returns:
//
//	EMA series aligned to values, or nil for empty input / invalid span
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 || span < 1 {
		return nil
	}

	alpha := 2.0 / float64(span+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMASMASeeded calculates an EMA seeded with the simple average of the first
// span values, using go-talib. The first span-1 entries are NaN.
// If there are fewer than span values the whole series is NaN.
func EMASMASeeded(values []float64, span int) []float64 {
	if len(values) == 0 || span < 1 {
		return nil
	}

	out := make([]float64, len(values))
	if len(values) < span {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	ema := talib.Ema(values, span)
	copy(out, ema)
	for i := 0; i < span-1; i++ {
		out[i] = math.NaN()
	}
	return out
}

// CalculateSMA calculates the Simple Moving Average of the last span values.
// Returns nil if there is not enough data.
func CalculateSMA(values []float64, span int) *float64 {
	if span < 1 || len(values) < span {
		return nil
	}

	sma := talib.Sma(values, span)
	if len(sma) > 0 && !math.IsNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}
