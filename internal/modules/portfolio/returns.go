package portfolio

import (
	"math"

	"github.com/aristath/rotation/internal/domain"
)

// DailyReturns computes each instrument's simple daily return aligned to the
// table rows: price[t] / price[previous observation] - 1.
// The entry is NaN when the instrument was not observed on t or has no
// earlier observation. Instruments are independent of each other.
func DailyReturns(table domain.PriceTable) map[string][]float64 {
	out := make(map[string][]float64, len(table.Prices))
	for id, col := range table.Prices {
		returns := make([]float64, len(col))
		prev := math.NaN()
		for row, p := range col {
			returns[row] = math.NaN()
			if math.IsNaN(p) {
				continue
			}
			if !math.IsNaN(prev) && prev != 0 {
				returns[row] = p/prev - 1
			}
			prev = p
		}
		out[id] = returns
	}
	return out
}
