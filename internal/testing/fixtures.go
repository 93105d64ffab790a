package testing

import (
	"math"
	"testing"
	"time"

	"github.com/aristath/rotation/internal/domain"
)

// FixtureStart is the first date of every fixture table
var FixtureStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// FixtureDates returns n consecutive calendar days starting at FixtureStart
func FixtureDates(n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = FixtureStart.AddDate(0, 0, i)
	}
	return dates
}

// Linear returns n prices starting at start and moving by step each day
func Linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// Wave returns n prices oscillating around base with the given period, so
// MACD crosses in both directions
func Wave(n int, base, amplitude float64, period int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + amplitude*math.Sin(2*math.Pi*float64(i)/float64(period)) + 0.01*float64(i)
	}
	return out
}

// NewPriceTable builds a validated table over FixtureDates
func NewPriceTable(t *testing.T, prices map[string][]float64) domain.PriceTable {
	t.Helper()

	n := 0
	for _, col := range prices {
		if len(col) > n {
			n = len(col)
		}
	}
	table, err := domain.NewPriceTable(FixtureDates(n), prices)
	if err != nil {
		t.Fatalf("Failed to build fixture price table: %v", err)
	}
	return table
}

// NewRotationTable returns n days of prices for the default five-ETF pool
func NewRotationTable(t *testing.T, n int) domain.PriceTable {
	t.Helper()
	return NewPriceTable(t, map[string][]float64{
		"510300": Wave(n, 4.0, 0.3, 40),
		"510880": Linear(n, 3.0, 0.002),
		"159915": Wave(n, 2.5, 0.4, 25),
		"513100": Linear(n, 1.2, 0.004),
		"518880": Wave(n, 5.0, 0.2, 60),
	})
}
