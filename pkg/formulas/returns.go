package formulas

import "math"

// CalculateReturns converts a price series into simple period returns.
// The result has len(prices)-1 entries; a zero previous price yields NaN.
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			returns[i-1] = math.NaN()
			continue
		}
		returns[i-1] = prices[i]/prices[i-1] - 1
	}
	return returns
}

// PeriodReturn returns prices[t]/prices[t-n] - 1 for every t, NaN for the
// first n entries or when the base price is zero.
func PeriodReturn(prices []float64, n int) []float64 {
	out := make([]float64, len(prices))
	for i := range prices {
		if n < 1 || i < n || prices[i-n] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = prices[i]/prices[i-n] - 1
	}
	return out
}
