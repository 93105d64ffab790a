// Package formulas provides pure numeric helpers for indicators and performance statistics.
package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization convention for daily series.
const TradingDaysPerYear = 252

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// StdDev returns the sample standard deviation (n-1 denominator).
// Fewer than two values have no dispersion and return 0.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}

// AnnualizedVolatility scales the daily sample standard deviation by sqrt(252).
func AnnualizedVolatility(returns []float64) float64 {
	return StdDev(returns) * math.Sqrt(TradingDaysPerYear)
}

// Percentile returns the p-th percentile (0..100) using linear interpolation
// between the two closest ranks, the same definition numpy uses by default.
//
// Args:
//   - values: Sample (order does not matter, input is not modified)
//   - p: Percentile in [0, 100]
//
// Returns:
//   - Interpolated percentile, or NaN for an empty sample
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

// CumulativeNAV compounds a return series into a net asset value curve
// starting from 1.0: NAV[t] = ∏(1 + r[0..t]).
func CumulativeNAV(returns []float64) []float64 {
	if len(returns) == 0 {
		return nil
	}

	growth := make([]float64, len(returns))
	for i, r := range returns {
		growth[i] = 1 + r
	}
	return floats.CumProd(make([]float64, len(returns)), growth)
}

// CompoundReturn returns ∏(1 + r) - 1 over the series.
func CompoundReturn(returns []float64) float64 {
	product := 1.0
	for _, r := range returns {
		product *= 1 + r
	}
	return product - 1
}

// Filter returns the values for which keep reports true.
func Filter(values []float64, keep func(float64) bool) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
