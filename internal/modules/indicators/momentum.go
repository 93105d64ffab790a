package indicators

import (
	"fmt"
	"math"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/pkg/formulas"
)

// Momentum computes the N-observation return and the regression trend score
// for every observation of the series.
//
//	Return[t] = price[t] / price[t-N] - 1     (NaN for the first N observations)
//	Score[t]  = TrendScore(price[t-N+1 .. t]) (NaN until N points exist)
//
// Windows are taken over observations, so gaps in the table never enter a
// window as zeros. A series shorter than N is returned with every value NaN
// together with ErrInsufficientHistory.
func Momentum(series domain.PriceSeries, n int) (domain.IndicatorSeries, error) {
	out := domain.IndicatorSeries{Instrument: series.Instrument}
	if n < 2 {
		return out, fmt.Errorf("%w: momentum window must be at least 2 (got %d)", domain.ErrInvalidParams, n)
	}

	returns := formulas.PeriodReturn(series.Values, n)
	scores := make([]float64, series.Len())
	degenerate := 0
	for t := range scores {
		if t+1 < n {
			scores[t] = math.NaN()
			continue
		}
		scores[t] = formulas.TrendScore(series.Values[t+1-n:t+1], n)
		if math.IsNaN(scores[t]) {
			degenerate++
		}
	}

	out.Dates = append(out.Dates, series.Dates...)
	out.Momentum = &domain.MomentumSeries{Return: returns, Score: scores}

	if series.Len() < n {
		return out, fmt.Errorf("%w: %s has %d observations, momentum needs %d",
			domain.ErrInsufficientHistory, series.Instrument, series.Len(), n)
	}
	if degenerate > 0 {
		return out, fmt.Errorf("%w: %s has %d unscorable windows", domain.ErrDegenerateScore, series.Instrument, degenerate)
	}
	return out, nil
}
