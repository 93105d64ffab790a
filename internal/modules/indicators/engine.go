package indicators

import (
	"context"
	"errors"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/rotation/internal/domain"
)

// ComputeFunc computes one instrument's indicators from its observed prices
type ComputeFunc func(series domain.PriceSeries) (domain.IndicatorSeries, error)

// Warning is a recoverable per-instrument indicator condition
type Warning struct {
	Instrument string `json:"instrument" msgpack:"instrument"`
	Message    string `json:"message" msgpack:"message"`
	err        error
}

// Unwrap exposes the underlying domain error for errors.Is checks
func (w Warning) Unwrap() error {
	return w.err
}

// Error implements error
func (w Warning) Error() string {
	return w.Instrument + ": " + w.Message
}

// Recoverable reports whether err only disables one instrument/date rather than the run
func Recoverable(err error) bool {
	return errors.Is(err, domain.ErrInsufficientHistory) || errors.Is(err, domain.ErrDegenerateScore)
}

// ComputeAll runs fn for every pool instrument in parallel and joins before
// returning. Instruments have no cross-dependency; results are keyed by id.
// Recoverable conditions are reported as warnings in pool order; any other
// error cancels the remaining work and is returned.
func ComputeAll(ctx context.Context, table domain.PriceTable, pool []domain.Instrument, fn ComputeFunc) (map[string]domain.IndicatorSeries, []Warning, error) {
	results := make([]domain.IndicatorSeries, len(pool))
	failures := make([]error, len(pool))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, inst := range pool {
		i, inst := i, inst
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series, err := fn(table.Observed(inst.ID))
			if err != nil && !Recoverable(err) {
				return err
			}
			results[i] = series
			failures[i] = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := make(map[string]domain.IndicatorSeries, len(pool))
	var warnings []Warning
	for i, inst := range pool {
		out[inst.ID] = results[i]
		if failures[i] != nil {
			warnings = append(warnings, Warning{Instrument: inst.ID, Message: failures[i].Error(), err: failures[i]})
		}
	}
	return out, warnings, nil
}
