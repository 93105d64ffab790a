package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/portfolio"
)

// BenchmarkFromTable aligns an instrument's daily returns to the strategy
// dates. Undefined returns (gaps, first observation) count as 0.
//
// Returns ErrMissingBenchmark when the instrument has no column.
func BenchmarkFromTable(table domain.PriceTable, id string, dates []time.Time) (*Benchmark, error) {
	if id == "" || !table.Has(id) {
		return nil, fmt.Errorf("%w: %q", domain.ErrMissingBenchmark, id)
	}

	daily := portfolio.DailyReturns(table)[id]
	out := &Benchmark{Instrument: id, Returns: make([]float64, len(dates))}
	for i, date := range dates {
		row := table.RowIndex(date)
		if row < 0 || math.IsNaN(daily[row]) {
			continue
		}
		out.Returns[i] = daily[row]
	}
	return out, nil
}
