// Package portfolio turns per-date exposure decisions into a portfolio return and NAV series.
package portfolio

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/pkg/formulas"
)

// CashLabel names a date on which nothing is held
const CashLabel = "Cash"

// Holding is one instrument's weight on a date
type Holding struct {
	Instrument string  `json:"instrument" msgpack:"instrument"`
	Weight     float64 `json:"weight" msgpack:"weight"`
}

// Allocation is the exposure decided for one date. Row points at the
// PriceTable row the date came from; Holdings are in pool order.
type Allocation struct {
	Date     time.Time `json:"date" msgpack:"date"`
	Row      int       `json:"row" msgpack:"row"`
	Holdings []Holding `json:"holdings" msgpack:"holdings"`
}

// ReturnSeries is the dated portfolio return and NAV output of one run
type ReturnSeries struct {
	Dates    []time.Time `json:"dates" msgpack:"dates"`
	Returns  []float64   `json:"returns" msgpack:"returns"`
	NAV      []float64   `json:"nav" msgpack:"nav"`
	Holdings [][]string  `json:"holdings" msgpack:"holdings"`
}

// Len returns the number of dates
func (s ReturnSeries) Len() int {
	return len(s.Dates)
}

// FinalNAV returns the last NAV value, 1.0 for an empty series
func (s ReturnSeries) FinalNAV() float64 {
	if len(s.NAV) == 0 {
		return 1.0
	}
	return s.NAV[len(s.NAV)-1]
}

// Label returns "Cash" or the comma-joined instruments held on row i
func (s ReturnSeries) Label(i int) string {
	if i < 0 || i >= len(s.Holdings) || len(s.Holdings[i]) == 0 {
		return CashLabel
	}
	return strings.Join(s.Holdings[i], ",")
}

// Aggregator combines held-instrument returns into portfolio returns
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a new portfolio aggregator
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("component", "portfolio_aggregator").Logger(),
	}
}

// Aggregate computes the daily portfolio return for every allocation:
//
//	return[t] = Σ weight_i × dailyReturn_i[t]   over held instruments
//
// A date with no holdings is cash and returns 0; an undefined instrument
// return contributes 0. The first date is forced to 0 because no position is
// assumed tradable on the first observation. NAV is the running product of
// (1 + return) starting from 1.0.
//
// Returns ErrEmptyAfterFiltering if there is nothing to aggregate.
func (a *Aggregator) Aggregate(allocs []Allocation, daily map[string][]float64) (ReturnSeries, error) {
	if len(allocs) == 0 {
		return ReturnSeries{}, domain.ErrEmptyAfterFiltering
	}

	series := ReturnSeries{
		Dates:    make([]time.Time, len(allocs)),
		Returns:  make([]float64, len(allocs)),
		Holdings: make([][]string, len(allocs)),
	}

	for i, alloc := range allocs {
		if i > 0 && !alloc.Date.After(allocs[i-1].Date) {
			return ReturnSeries{}, fmt.Errorf("%w: allocation dates out of order at %s",
				domain.ErrInvalidParams, alloc.Date.Format(domain.DateLayout))
		}

		series.Dates[i] = alloc.Date
		held := make([]string, 0, len(alloc.Holdings))
		ret := 0.0
		for _, h := range alloc.Holdings {
			if h.Weight == 0 {
				continue
			}
			held = append(held, h.Instrument)
			col, ok := daily[h.Instrument]
			if !ok || alloc.Row < 0 || alloc.Row >= len(col) || math.IsNaN(col[alloc.Row]) {
				continue
			}
			ret += h.Weight * col[alloc.Row]
		}
		series.Holdings[i] = held
		series.Returns[i] = ret
	}

	series.Returns[0] = 0
	series.NAV = formulas.CumulativeNAV(series.Returns)

	a.log.Debug().
		Int("dates", series.Len()).
		Float64("final_nav", series.FinalNAV()).
		Msg("Aggregated portfolio returns")

	return series, nil
}
