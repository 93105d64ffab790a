package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TrendScoreScale is the multiplier applied to slope × R².
const TrendScoreScale = 10000.0

// TrendScore scores how strongly and how cleanly a price window trends.
//
// The window is normalized by its first value, an ordinary least squares line
// is fitted against the rank index 1..N, and the score is
//
//	score = 10000 × slope × R²
//
// Normalization makes the score invariant to uniform positive scaling.
//
// Args:
//   - window: Price window, oldest first
//   - n: Required window length
//
// Returns:
//   - Score, or NaN when len(window) != n, n < 2, or the first value is zero
func TrendScore(window []float64, n int) float64 {
	if n < 2 || len(window) != n {
		return math.NaN()
	}
	if window[0] == 0 {
		return math.NaN()
	}

	x := make([]float64, n)
	y := make([]float64, n)
	for i, v := range window {
		x[i] = float64(i + 1)
		y[i] = v / window[0]
	}

	// A flat window is a perfect fit with zero slope.
	if stat.Variance(y, nil) == 0 {
		return 0
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)

	return TrendScoreScale * beta * r2
}
