package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// PriceTable maps ascending unique trading dates to per-instrument adjusted
// closes. A missing observation is stored as NaN; it is never zero-filled.
type PriceTable struct {
	Dates  []time.Time
	Prices map[string][]float64
}

// PriceSeries is one instrument's observations with gaps removed.
// Rows maps every observation back to its PriceTable row.
type PriceSeries struct {
	Instrument string
	Dates      []time.Time
	Values     []float64
	Rows       []int
}

// Len returns the number of observations
func (s PriceSeries) Len() int {
	return len(s.Values)
}

// NewPriceTable builds a validated price table. Dates are normalized to UTC
// midnight and must be strictly increasing; every column must have one entry
// per date; prices must be non-negative or NaN.
func NewPriceTable(dates []time.Time, prices map[string][]float64) (PriceTable, error) {
	normalized := make([]time.Time, len(dates))
	for i, d := range dates {
		normalized[i] = NormalizeDate(d)
		if i > 0 && !normalized[i].After(normalized[i-1]) {
			return PriceTable{}, fmt.Errorf("%w: date %s not after %s", ErrInvalidPriceTable,
				normalized[i].Format(DateLayout), normalized[i-1].Format(DateLayout))
		}
	}

	columns := make(map[string][]float64, len(prices))
	for id, col := range prices {
		if id == "" {
			return PriceTable{}, fmt.Errorf("%w: empty instrument id", ErrInvalidPriceTable)
		}
		if len(col) != len(dates) {
			return PriceTable{}, fmt.Errorf("%w: instrument %s has %d prices for %d dates",
				ErrInvalidPriceTable, id, len(col), len(dates))
		}
		for i, p := range col {
			if !math.IsNaN(p) && (p < 0 || math.IsInf(p, 0)) {
				return PriceTable{}, fmt.Errorf("%w: instrument %s has price %v on %s",
					ErrInvalidPriceTable, id, p, normalized[i].Format(DateLayout))
			}
		}
		copied := make([]float64, len(col))
		copy(copied, col)
		columns[id] = copied
	}

	return PriceTable{Dates: normalized, Prices: columns}, nil
}

// Len returns the number of dates
func (t PriceTable) Len() int {
	return len(t.Dates)
}

// Has reports whether the table carries a column for the instrument
func (t PriceTable) Has(id string) bool {
	_, ok := t.Prices[id]
	return ok
}

// Instruments returns the column ids in lexical order
func (t PriceTable) Instruments() []string {
	ids := make([]string, 0, len(t.Prices))
	for id := range t.Prices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Price returns the price of id on row, and whether it was observed
func (t PriceTable) Price(id string, row int) (float64, bool) {
	col, ok := t.Prices[id]
	if !ok || row < 0 || row >= len(col) || math.IsNaN(col[row]) {
		return 0, false
	}
	return col[row], true
}

// RowIndex returns the row of date, or -1 if the table has no such date
func (t PriceTable) RowIndex(date time.Time) int {
	date = NormalizeDate(date)
	i := sort.Search(len(t.Dates), func(i int) bool { return !t.Dates[i].Before(date) })
	if i < len(t.Dates) && t.Dates[i].Equal(date) {
		return i
	}
	return -1
}

// Slice returns the rows within [start, end], inclusive. A zero bound is open.
// Columns share no memory with the receiver.
func (t PriceTable) Slice(start, end time.Time) PriceTable {
	from := 0
	if !start.IsZero() {
		s := NormalizeDate(start)
		from = sort.Search(len(t.Dates), func(i int) bool { return !t.Dates[i].Before(s) })
	}
	to := len(t.Dates)
	if !end.IsZero() {
		e := NormalizeDate(end)
		to = sort.Search(len(t.Dates), func(i int) bool { return t.Dates[i].After(e) })
	}
	if to < from {
		to = from
	}

	out := PriceTable{
		Dates:  append([]time.Time(nil), t.Dates[from:to]...),
		Prices: make(map[string][]float64, len(t.Prices)),
	}
	for id, col := range t.Prices {
		out.Prices[id] = append([]float64(nil), col[from:to]...)
	}
	return out
}

// Observed returns the instrument's observations with missing rows removed
func (t PriceTable) Observed(id string) PriceSeries {
	series := PriceSeries{Instrument: id}
	col, ok := t.Prices[id]
	if !ok {
		return series
	}

	for row, p := range col {
		if math.IsNaN(p) {
			continue
		}
		series.Dates = append(series.Dates, t.Dates[row])
		series.Values = append(series.Values, p)
		series.Rows = append(series.Rows, row)
	}
	return series
}
