package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/modules/backtest"
	"github.com/aristath/rotation/internal/modules/strategy"
	"github.com/aristath/rotation/internal/services"
)

// DefaultBacktestTimeout bounds a single scheduled run
const DefaultBacktestTimeout = 5 * time.Minute

// BacktestRunner runs and stores one strategy
type BacktestRunner interface {
	Run(ctx context.Context, cfg strategy.Config, opts services.RunOptions) (*backtest.Result, error)
}

// BacktestJob re-runs every configured strategy against the stored history
// and saves the results
type BacktestJob struct {
	log        zerolog.Logger
	runner     BacktestRunner
	strategies []strategy.Config
	timeout    time.Duration
}

// NewBacktestJob creates a new BacktestJob
func NewBacktestJob(runner BacktestRunner, strategies []strategy.Config) *BacktestJob {
	return &BacktestJob{
		log:        zerolog.Nop(),
		runner:     runner,
		strategies: strategies,
		timeout:    DefaultBacktestTimeout,
	}
}

// SetLogger sets the logger for the job
func (j *BacktestJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *BacktestJob) Name() string {
	return "scheduled_backtest"
}

// Run executes every strategy. One failing strategy does not stop the
// others; the first error is returned after all have been tried.
func (j *BacktestJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	var firstErr error
	saved := 0
	for _, cfg := range j.strategies {
		result, err := j.runner.Run(ctx, cfg, services.RunOptions{Save: true})
		if err != nil {
			j.log.Error().Err(err).Str("strategy", cfg.Name).Msg("Scheduled backtest failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("strategy %s: %w", cfg.Name, err)
			}
			continue
		}
		saved++
		j.log.Info().
			Str("strategy", cfg.Name).
			Str("id", result.ID).
			Float64("total_return", result.Report.Strategy.TotalReturn).
			Msg("Scheduled backtest saved")
	}

	j.log.Info().Int("saved", saved).Int("strategies", len(j.strategies)).Msg("Scheduled backtests completed")
	return firstErr
}
