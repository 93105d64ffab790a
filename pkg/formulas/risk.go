package formulas

// ValueAtRisk calculates historical Value at Risk at the given confidence:
// the (1-confidence) percentile of the return distribution.
// For 0.95 this is the 5th percentile; the value is negative for losses.
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return Percentile(returns, (1-confidence)*100)
}

// ConditionalVaR is the mean of all returns at or below threshold
// (usually the VaR). Returns 0 if no return is in the tail.
func ConditionalVaR(returns []float64, threshold float64) float64 {
	tail := Filter(returns, func(r float64) bool { return r <= threshold })
	if len(tail) == 0 {
		return 0
	}
	return Mean(tail)
}
