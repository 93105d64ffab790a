// Package backtest drives one strategy run end to end: indicators, signals,
// positions, portfolio returns and the performance report.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/analytics"
	"github.com/aristath/rotation/internal/modules/indicators"
	"github.com/aristath/rotation/internal/modules/portfolio"
	"github.com/aristath/rotation/internal/modules/positions"
	"github.com/aristath/rotation/internal/modules/strategy"
	"github.com/aristath/rotation/internal/utils"
)

// Request is one backtest invocation
type Request struct {
	Strategy strategy.Config
	Table    domain.PriceTable
}

// Result is the complete output of a successful run
type Result struct {
	ID           string                            `json:"id" msgpack:"id"`
	Config       strategy.Config                   `json:"config" msgpack:"config"`
	CreatedAt    time.Time                         `json:"created_at" msgpack:"created_at"`
	Start        time.Time                         `json:"start" msgpack:"start"`
	End          time.Time                         `json:"end" msgpack:"end"`
	Indicators   map[string]domain.IndicatorSeries `json:"-" msgpack:"indicators"`
	Signals      domain.SignalSeries               `json:"signals" msgpack:"signals"`
	Series       portfolio.ReturnSeries            `json:"series" msgpack:"series"`
	Transitions  []positions.Transition            `json:"transitions" msgpack:"transitions"`
	Report       analytics.Report                  `json:"report" msgpack:"report"`
	Holdings     portfolio.HoldingSummary          `json:"holdings" msgpack:"holdings"`
	LatestStatus []strategy.Status                 `json:"latest_status" msgpack:"latest_status"`
	Warnings     []string                          `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
	Duration     time.Duration                     `json:"duration_ns" msgpack:"duration_ns"`
}

// Service runs backtests. It holds no per-run state and is safe for
// concurrent use; each run owns its own position machine.
type Service struct {
	aggregator *portfolio.Aggregator
	analyzer   *analytics.Analyzer
	log        zerolog.Logger
}

// NewService creates a new backtest service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		aggregator: portfolio.NewAggregator(log),
		analyzer:   analytics.NewAnalyzer(log),
		log:        log.With().Str("service", "backtest").Logger(),
	}
}

// Run executes a backtest over req.Table restricted to the configured date
// range.
//
// Insufficient history and degenerate scores only disable the affected
// instrument/date and show up in Result.Warnings, as does a missing benchmark
// column. ErrEmptyAfterFiltering aborts the run without a partial result.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	cfg := req.Strategy
	log := s.log.With().Str("strategy", cfg.Name).Str("mode", cfg.Mode).Logger()
	timer := utils.NewTimer("backtest_run", log)

	strat, err := strategy.New(cfg, log)
	if err != nil {
		return nil, err
	}

	start, end, err := cfg.Range()
	if err != nil {
		return nil, err
	}
	table := req.Table.Slice(start, end)
	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: no prices between %q and %q", domain.ErrEmptyAfterFiltering, cfg.Start, cfg.End)
	}

	var warnings []string
	for _, inst := range cfg.Pool {
		if !table.Has(inst.ID) {
			log.Warn().Str("instrument", inst.ID).Msg("Instrument has no prices, it will never be held")
			warnings = append(warnings, fmt.Sprintf("%s: no prices in table", inst.ID))
		}
	}

	ind, indWarnings, err := indicators.ComputeAll(ctx, table, cfg.Pool, strat.ComputeIndicators)
	if err != nil {
		return nil, fmt.Errorf("failed to compute indicators: %w", err)
	}
	for _, w := range indWarnings {
		log.Warn().Str("instrument", w.Instrument).Msg(w.Message)
		warnings = append(warnings, w.Error())
	}

	signals, err := strat.GenerateSignals(table, cfg.Pool, ind)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signals: %w", err)
	}

	allocs, transitions, err := strat.Allocate(signals, cfg.Pool)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate: %w", err)
	}

	series, err := s.aggregator.Aggregate(allocs, portfolio.DailyReturns(table))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate returns: %w", err)
	}

	var bench *analytics.Benchmark
	if cfg.Benchmark != "" {
		bench, err = analytics.BenchmarkFromTable(table, cfg.Benchmark, series.Dates)
		if errors.Is(err, domain.ErrMissingBenchmark) {
			log.Warn().Str("benchmark", cfg.Benchmark).Msg("Benchmark column missing, skipping benchmark comparison")
			warnings = append(warnings, err.Error())
		} else if err != nil {
			return nil, fmt.Errorf("failed to align benchmark: %w", err)
		}
	}

	report, err := s.analyzer.Analyze(series, bench)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze performance: %w", err)
	}

	result := &Result{
		Config:       cfg,
		CreatedAt:    time.Now().UTC(),
		Start:        series.Dates[0],
		End:          series.Dates[series.Len()-1],
		Indicators:   ind,
		Signals:      signals,
		Series:       series,
		Transitions:  transitions,
		Report:       report,
		Holdings:     portfolio.SummarizeHoldings(series, cfg.Pool),
		LatestStatus: strat.LatestStatus(cfg.Pool, ind, signals, allocs),
		Warnings:     warnings,
	}
	result.Duration = timer.Stop()

	log.Info().
		Int("dates", series.Len()).
		Int("transitions", len(transitions)).
		Float64("final_nav", series.FinalNAV()).
		Int("warnings", len(warnings)).
		Msg("Backtest completed")

	return result, nil
}
