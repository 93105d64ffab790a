// Package indicators computes per-instrument technical indicators from price series.
package indicators

import (
	"fmt"
	"math"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/pkg/formulas"
)

// EMA seeding modes
const (
	// SeedFirst seeds every EMA with the first observation (default)
	SeedFirst = "first"
	// SeedSMA seeds every EMA with the simple average of its first span values
	SeedSMA = "sma"
)

// MACDParams holds the three EMA spans and the seeding mode
type MACDParams struct {
	Short  int    `json:"short" yaml:"short"`
	Long   int    `json:"long" yaml:"long"`
	Signal int    `json:"signal" yaml:"signal"`
	Seed   string `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// DefaultMACDParams returns the classic 12/26/9 configuration
func DefaultMACDParams() MACDParams {
	return MACDParams{Short: 12, Long: 26, Signal: 9, Seed: SeedFirst}
}

// Validate checks span ordering and the seed mode
func (p MACDParams) Validate() error {
	if p.Short < 1 || p.Long < 1 || p.Signal < 1 {
		return fmt.Errorf("%w: MACD spans must be positive (got %d/%d/%d)", domain.ErrInvalidParams, p.Short, p.Long, p.Signal)
	}
	if p.Short >= p.Long {
		return fmt.Errorf("%w: MACD short span %d must be below long span %d", domain.ErrInvalidParams, p.Short, p.Long)
	}
	switch p.Seed {
	case "", SeedFirst, SeedSMA:
	default:
		return fmt.Errorf("%w: unknown EMA seed %q", domain.ErrInvalidParams, p.Seed)
	}
	return nil
}

// MACD computes diff, dea and the histogram (2 × (diff − dea)) over the
// instrument's observed prices.
//
// A series shorter than the long span yields an empty IndicatorSeries and
// ErrInsufficientHistory; callers must treat that as "indicator unavailable".
// With SeedSMA the warm-up entries are NaN.
func MACD(series domain.PriceSeries, params MACDParams) (domain.IndicatorSeries, error) {
	out := domain.IndicatorSeries{Instrument: series.Instrument}
	if err := params.Validate(); err != nil {
		return out, err
	}
	if series.Len() < params.Long {
		return out, fmt.Errorf("%w: %s has %d observations, MACD needs %d",
			domain.ErrInsufficientHistory, series.Instrument, series.Len(), params.Long)
	}

	var diff, dea []float64
	if params.Seed == SeedSMA {
		diff, dea = macdSMASeeded(series.Values, params)
	} else {
		emaShort := formulas.EMA(series.Values, params.Short)
		emaLong := formulas.EMA(series.Values, params.Long)
		diff = make([]float64, series.Len())
		for i := range diff {
			diff[i] = emaShort[i] - emaLong[i]
		}
		dea = formulas.EMA(diff, params.Signal)
	}

	hist := make([]float64, len(diff))
	for i := range hist {
		hist[i] = 2 * (diff[i] - dea[i])
	}

	out.Dates = append(out.Dates, series.Dates...)
	out.MACD = &domain.MACDSeries{Diff: diff, DEA: dea, Hist: hist}
	return out, nil
}

// macdSMASeeded runs the signal EMA only over the defined tail of diff so the
// warm-up NaNs never enter the recursion.
func macdSMASeeded(values []float64, params MACDParams) ([]float64, []float64) {
	emaShort := formulas.EMASMASeeded(values, params.Short)
	emaLong := formulas.EMASMASeeded(values, params.Long)

	diff := make([]float64, len(values))
	dea := make([]float64, len(values))
	for i := range diff {
		diff[i] = emaShort[i] - emaLong[i]
		dea[i] = math.NaN()
	}

	first := params.Long - 1
	tail := formulas.EMASMASeeded(diff[first:], params.Signal)
	copy(dea[first:], tail)
	return diff, dea
}
