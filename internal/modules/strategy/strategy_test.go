package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/indicators"
)

func dates(n int) []time.Time {
	out := make([]time.Time, n)
	for i := range out {
		out[i] = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
	}
	return out
}

func buildTable(t *testing.T, prices map[string][]float64) domain.PriceTable {
	t.Helper()
	n := 0
	for _, col := range prices {
		n = len(col)
	}
	table, err := domain.NewPriceTable(dates(n), prices)
	require.NoError(t, err)
	return table
}

func computeAll(t *testing.T, s SignalStrategy, table domain.PriceTable, pool []domain.Instrument) map[string]domain.IndicatorSeries {
	t.Helper()
	out := make(map[string]domain.IndicatorSeries, len(pool))
	for _, inst := range pool {
		series, err := s.ComputeIndicators(table.Observed(inst.ID))
		if err != nil {
			require.True(t, indicators.Recoverable(err), "unexpected error: %v", err)
		}
		out[inst.ID] = series
	}
	return out
}

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

func TestMACDStrategy_RisingInstrumentGoldenCrosses(t *testing.T) {
	pool := []domain.Instrument{{ID: "X"}, {ID: "Y"}}
	table := buildTable(t, map[string][]float64{
		"X": linear(60, 100, 1),
		"Y": linear(60, 50, 0),
	})

	s := NewMACDStrategy(indicators.DefaultMACDParams(), zerolog.Nop())
	ind := computeAll(t, s, table, pool)

	signals, err := s.GenerateSignals(table, pool, ind)
	require.NoError(t, err)
	require.Equal(t, 60, signals.Len())

	assert.Equal(t, domain.SignalNone, signals.Actions["X"][0], "first observation never signals")
	assert.Equal(t, domain.SignalBuy, signals.Actions["X"][1])
	for i := 0; i < 60; i++ {
		assert.Equal(t, domain.SignalNone, signals.Actions["Y"][i], "flat instrument never crosses")
		if i > 1 {
			assert.Equal(t, domain.SignalNone, signals.Actions["X"][i])
		}
	}

	allocs, transitions, err := s.Allocate(signals, pool)
	require.NoError(t, err)
	require.Len(t, allocs, 60)
	require.Len(t, transitions, 1)
	assert.Equal(t, "X", transitions[0].Instrument)

	assert.Empty(t, allocs[0].Holdings)
	for _, alloc := range allocs[1:] {
		require.Len(t, alloc.Holdings, 1)
		assert.Equal(t, "X", alloc.Holdings[0].Instrument)
		assert.Equal(t, 0.5, alloc.Holdings[0].Weight)
	}

	status := s.LatestStatus(pool, ind, signals, allocs)
	require.Len(t, status, 2)
	assert.True(t, status[0].Held)
	assert.False(t, status[1].Held)
	require.NotNil(t, status[0].Diff)
	assert.Greater(t, *status[0].Diff, 0.0)
}

func TestMACDStrategy_ShortHistoryNeverHeld(t *testing.T) {
	pool := []domain.Instrument{{ID: "X"}, {ID: "Y"}}
	x := linear(40, 100, 1)
	for i := 0; i < 30; i++ {
		x[i] = math.NaN()
	}
	table := buildTable(t, map[string][]float64{
		"X": x,
		"Y": linear(40, 50, 0.5),
	})

	s := NewMACDStrategy(indicators.DefaultMACDParams(), zerolog.Nop())
	series, err := s.ComputeIndicators(table.Observed("X"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))
	assert.True(t, series.Empty())

	ind := computeAll(t, s, table, pool)
	signals, err := s.GenerateSignals(table, pool, ind)
	require.NoError(t, err)
	for _, sig := range signals.Actions["X"] {
		assert.Equal(t, domain.SignalNone, sig)
	}

	allocs, _, err := s.Allocate(signals, pool)
	require.NoError(t, err)
	for _, alloc := range allocs {
		for _, h := range alloc.Holdings {
			assert.NotEqual(t, "X", h.Instrument)
		}
	}
}

func TestMACDStrategy_SignalsLandOnObservedRows(t *testing.T) {
	pool := []domain.Instrument{{ID: "X"}}
	x := linear(40, 100, 1)
	x[1] = math.NaN()
	table := buildTable(t, map[string][]float64{"X": x})

	s := NewMACDStrategy(indicators.MACDParams{Short: 3, Long: 6, Signal: 2, Seed: indicators.SeedFirst}, zerolog.Nop())
	signals, err := s.GenerateSignals(table, pool, computeAll(t, s, table, pool))
	require.NoError(t, err)

	assert.Equal(t, domain.SignalNone, signals.Actions["X"][1], "gap row carries no signal")
	assert.Equal(t, domain.SignalBuy, signals.Actions["X"][2], "cross lands on the next observed row")
}

func momentumFixture(t *testing.T) domain.PriceTable {
	return buildTable(t, map[string][]float64{
		"A": {10, 11, 12, 13, 14, 15, 15, 15, 15, 15},
		"B": {10, 10.2, 10.4, 10.6, 10.8, 11, 11.5, 12, 12.5, 13},
		"C": {10, 10, 10, 10, 10, 10, 10, 10, 10, 10},
	})
}

func TestMomentumStrategy_WinnerIsLaggedOneDate(t *testing.T) {
	pool := []domain.Instrument{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	table := momentumFixture(t)

	s := NewMomentumStrategy(5, zerolog.Nop())
	ind := computeAll(t, s, table, pool)

	signals, err := s.GenerateSignals(table, pool, ind)
	require.NoError(t, err)

	// rows 5..9 are complete; picks are A A A B B, shifted one row forward
	assert.Equal(t, []int{6, 7, 8, 9}, signals.Rows)
	assert.Equal(t, []string{"A", "A", "A", "B"}, signals.Winners)
	assert.Equal(t, table.Dates[6], signals.Dates[0])

	allocs, transitions, err := s.Allocate(signals, pool)
	require.NoError(t, err)
	require.Len(t, allocs, 4)
	assert.Equal(t, 9, allocs[3].Row)
	assert.Equal(t, "B", allocs[3].Holdings[0].Instrument)
	assert.Equal(t, 1.0, allocs[3].Holdings[0].Weight)

	require.Len(t, transitions, 3)
	assert.Equal(t, domain.SignalSell, transitions[1].Action)
	assert.Equal(t, "A", transitions[1].Instrument)
	assert.Equal(t, "B", transitions[2].Instrument)

	status := s.LatestStatus(pool, ind, signals, allocs)
	assert.True(t, status[1].Held)
	assert.Equal(t, "buy", status[1].Signal)
	require.NotNil(t, status[1].MomentumReturn)
}

func TestMomentumStrategy_TiesGoToPoolOrder(t *testing.T) {
	prices := linear(8, 10, 1)
	table := buildTable(t, map[string][]float64{"A": prices, "B": append([]float64(nil), prices...)})
	s := NewMomentumStrategy(3, zerolog.Nop())

	forward := []domain.Instrument{{ID: "A"}, {ID: "B"}}
	signals, err := s.GenerateSignals(table, forward, computeAll(t, s, table, forward))
	require.NoError(t, err)
	for _, w := range signals.Winners {
		assert.Equal(t, "A", w)
	}

	reversed := []domain.Instrument{{ID: "B"}, {ID: "A"}}
	signals, err = s.GenerateSignals(table, reversed, computeAll(t, s, table, reversed))
	require.NoError(t, err)
	for _, w := range signals.Winners {
		assert.Equal(t, "B", w)
	}
}

func TestMomentumStrategy_EmptyAfterFiltering(t *testing.T) {
	pool := []domain.Instrument{{ID: "A"}, {ID: "B"}}
	table := buildTable(t, map[string][]float64{
		"A": linear(6, 10, 1),
		"B": linear(6, 20, 1),
	})

	s := NewMomentumStrategy(5, zerolog.Nop())
	_, err := s.GenerateSignals(table, pool, computeAll(t, s, table, pool))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmptyAfterFiltering))
}

func TestMomentumStrategy_DropsRowsWithGaps(t *testing.T) {
	pool := []domain.Instrument{{ID: "A"}, {ID: "C"}}
	table := momentumFixture(t)
	table.Prices["C"][7] = math.NaN()
	delete(table.Prices, "B")

	s := NewMomentumStrategy(5, zerolog.Nop())
	signals, err := s.GenerateSignals(table, pool, computeAll(t, s, table, pool))
	require.NoError(t, err)

	assert.NotContains(t, signals.Rows, 7)
}

func TestNew_SelectsMode(t *testing.T) {
	cfg := DefaultConfig()
	s, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, ModeMACD, s.Name())
	assert.Equal(t, 26, s.MinHistory())

	cfg.Mode = ModeMomentum
	s, err = New(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, ModeMomentum, s.Name())
	assert.Equal(t, 20, s.MinHistory())

	cfg.Mode = "rsi"
	_, err = New(cfg, zerolog.Nop())
	assert.True(t, errors.Is(err, domain.ErrInvalidParams))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty pool", func(c *Config) { c.Pool = nil }},
		{"duplicate instrument", func(c *Config) { c.Pool = append(c.Pool, c.Pool[0]) }},
		{"bad start", func(c *Config) { c.Start = "yesterday" }},
		{"end before start", func(c *Config) { c.Start, c.End = "20240102", "20240101" }},
		{"short not below long", func(c *Config) { c.MACD.Short = 30 }},
		{"momentum window", func(c *Config) { c.Mode, c.Momentum.Window = ModeMomentum, 1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), domain.ErrInvalidParams))
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}
