/**
 * Package services provides BacktestRunner, the single entry point that turns a
 * strategy configuration into a stored backtest result.
 *
 * BacktestRunner coordinates:
 * - Price loading from history.db (pool instruments plus the benchmark)
 * - The backtest pipeline itself
 * - Persisting the result to results.db (optional)
 *
 * Usage:
 *   result, _ := runner.Run(ctx, cfg, services.RunOptions{Save: true})
 *   fmt.Println(result.ID, result.Series.FinalNAV())
 */
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/backtest"
	"github.com/aristath/rotation/internal/modules/strategy"
	"github.com/aristath/rotation/internal/utils"
)

// PriceLoader loads a price table for the given instruments
type PriceLoader interface {
	LoadTable(ctx context.Context, ids []string, start, end time.Time) (domain.PriceTable, error)
}

// ResultStore persists a completed run and returns its id
type ResultStore interface {
	Save(ctx context.Context, result *backtest.Result) (string, error)
}

// RunOptions controls a single runner invocation
type RunOptions struct {
	// Table overrides the history store (e.g. prices read from a CSV file)
	Table *domain.PriceTable
	// Save stores the result in the results database
	Save bool
}

/**
 * BacktestRunner loads prices, runs a backtest and optionally stores the result.
 *
 * The runner loads the whole stored history for the requested instruments and
 * leaves the date range to the backtest service, so range handling is identical
 * whether prices come from the database or a file.
 */
type BacktestRunner struct {
	prices  PriceLoader
	results ResultStore
	service *backtest.Service
	metrics *utils.MetricsRecorder
	log     zerolog.Logger
}

/**
 * NewBacktestRunner creates a new BacktestRunner.
 *
 * Parameters:
 *   - prices: History store; may be nil when every call passes RunOptions.Table
 *   - results: Result store; may be nil when no call sets RunOptions.Save
 *   - service: Backtest pipeline
 *   - log: Structured logger
 */
func NewBacktestRunner(prices PriceLoader, results ResultStore, service *backtest.Service, log zerolog.Logger) *BacktestRunner {
	return &BacktestRunner{
		prices:  prices,
		results: results,
		service: service,
		metrics: utils.NewMetricsRecorder("backtest_run"),
		log:     log.With().Str("service", "backtest_runner").Logger(),
	}
}

// Metrics returns the aggregated run timings
func (r *BacktestRunner) Metrics() utils.PerformanceMetrics {
	return r.metrics.Snapshot()
}

// Run executes one backtest for cfg
func (r *BacktestRunner) Run(ctx context.Context, cfg strategy.Config, opts RunOptions) (*backtest.Result, error) {
	start := time.Now()
	result, err := r.run(ctx, cfg, opts)
	r.metrics.Record(time.Since(start), err)
	return result, err
}

func (r *BacktestRunner) run(ctx context.Context, cfg strategy.Config, opts RunOptions) (*backtest.Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var table domain.PriceTable
	if opts.Table != nil {
		table = *opts.Table
	} else {
		if r.prices == nil {
			return nil, fmt.Errorf("no price source configured")
		}
		loaded, err := r.prices.LoadTable(ctx, Instruments(cfg), time.Time{}, time.Time{})
		if err != nil {
			return nil, fmt.Errorf("failed to load prices: %w", err)
		}
		table = loaded
	}

	result, err := r.service.Run(ctx, backtest.Request{Strategy: cfg, Table: table})
	if err != nil {
		return nil, err
	}

	if opts.Save {
		if r.results == nil {
			return nil, fmt.Errorf("no result store configured")
		}
		if _, err := r.results.Save(ctx, result); err != nil {
			return nil, err
		}
	}

	r.log.Info().
		Str("strategy", cfg.Name).
		Str("id", result.ID).
		Float64("final_nav", result.Series.FinalNAV()).
		Int("warnings", len(result.Warnings)).
		Msg("Backtest finished")

	return result, nil
}

// Instruments returns the pool ids followed by the benchmark, without duplicates
func Instruments(cfg strategy.Config) []string {
	ids := make([]string, 0, len(cfg.Pool)+1)
	seen := make(map[string]bool, len(cfg.Pool)+1)
	for _, inst := range cfg.Pool {
		if !seen[inst.ID] {
			seen[inst.ID] = true
			ids = append(ids, inst.ID)
		}
	}
	if cfg.Benchmark != "" && !seen[cfg.Benchmark] {
		ids = append(ids, cfg.Benchmark)
	}
	return ids
}
