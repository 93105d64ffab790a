package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewPriceTable_Validation(t *testing.T) {
	tests := []struct {
		name   string
		dates  []time.Time
		prices map[string][]float64
	}{
		{
			name:   "unsorted dates",
			dates:  []time.Time{day(1), day(0)},
			prices: map[string][]float64{"A": {1, 2}},
		},
		{
			name:   "duplicate dates",
			dates:  []time.Time{day(0), day(0)},
			prices: map[string][]float64{"A": {1, 2}},
		},
		{
			name:   "length mismatch",
			dates:  []time.Time{day(0), day(1)},
			prices: map[string][]float64{"A": {1}},
		},
		{
			name:   "negative price",
			dates:  []time.Time{day(0)},
			prices: map[string][]float64{"A": {-1}},
		},
		{
			name:   "empty id",
			dates:  []time.Time{day(0)},
			prices: map[string][]float64{"": {1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPriceTable(tt.dates, tt.prices)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPriceTable))
		})
	}
}

func TestNewPriceTable_NormalizesDates(t *testing.T) {
	ts := time.Date(2024, 3, 5, 15, 30, 0, 0, time.FixedZone("CST", 8*3600))
	table, err := NewPriceTable([]time.Time{ts}, map[string][]float64{"A": {1}})

	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), table.Dates[0])
}

func TestPriceTable_ObservedSkipsGaps(t *testing.T) {
	table, err := NewPriceTable(
		[]time.Time{day(0), day(1), day(2), day(3)},
		map[string][]float64{"A": {10, math.NaN(), 12, 13}},
	)
	require.NoError(t, err)

	series := table.Observed("A")
	assert.Equal(t, []float64{10, 12, 13}, series.Values)
	assert.Equal(t, []int{0, 2, 3}, series.Rows)
	assert.Equal(t, day(2), series.Dates[1])

	assert.Equal(t, 0, table.Observed("missing").Len())
}

func TestPriceTable_SliceInclusive(t *testing.T) {
	table, err := NewPriceTable(
		[]time.Time{day(0), day(1), day(2), day(3)},
		map[string][]float64{"A": {1, 2, 3, 4}},
	)
	require.NoError(t, err)

	sliced := table.Slice(day(1), day(2))
	assert.Equal(t, []time.Time{day(1), day(2)}, sliced.Dates)
	assert.Equal(t, []float64{2, 3}, sliced.Prices["A"])

	assert.Equal(t, 4, table.Slice(time.Time{}, time.Time{}).Len())
	assert.Equal(t, 0, table.Slice(day(10), day(20)).Len())

	// no aliasing
	sliced.Prices["A"][0] = 99
	assert.Equal(t, 2.0, table.Prices["A"][1])
}

func TestPriceTable_Lookups(t *testing.T) {
	table, err := NewPriceTable(
		[]time.Time{day(0), day(2)},
		map[string][]float64{"B": {1, math.NaN()}, "A": {3, 4}},
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, table.Instruments())
	assert.Equal(t, 1, table.RowIndex(day(2)))
	assert.Equal(t, -1, table.RowIndex(day(1)))

	p, ok := table.Price("A", 1)
	assert.True(t, ok)
	assert.Equal(t, 4.0, p)

	_, ok = table.Price("B", 1)
	assert.False(t, ok)
	assert.True(t, table.Has("A"))
	assert.False(t, table.Has("C"))
}

func TestParseDate(t *testing.T) {
	a, err := ParseDate("2020-01-02")
	require.NoError(t, err)
	b, err := ParseDate("20200102")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = ParseDate("01/02/2020")
	assert.Error(t, err)
}

func TestSignalString(t *testing.T) {
	assert.Equal(t, "buy", SignalBuy.String())
	assert.Equal(t, "sell", SignalSell.String())
	assert.Equal(t, "none", SignalNone.String())
}

func TestInstrumentIDs(t *testing.T) {
	pool := []Instrument{{ID: "B"}, {ID: "A"}}
	assert.Equal(t, []string{"B", "A"}, InstrumentIDs(pool))
}

func TestSignalText(t *testing.T) {
	for _, s := range []Signal{SignalBuy, SignalSell, SignalNone} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var decoded Signal
		require.NoError(t, decoded.UnmarshalText(text))
		assert.Equal(t, s, decoded)
	}

	var s Signal
	assert.Error(t, s.UnmarshalText([]byte("hold")))
}
