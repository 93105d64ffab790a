package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotation/internal/modules/backtest"
	"github.com/aristath/rotation/internal/modules/history"
	"github.com/aristath/rotation/internal/modules/results"
	"github.com/aristath/rotation/internal/modules/strategy"
	testingpkg "github.com/aristath/rotation/internal/testing"
)

func newRunner(t *testing.T) (*BacktestRunner, *history.Repository, *results.Repository) {
	t.Helper()

	historyDB, cleanupHistory := testingpkg.NewTestDB(t, "history")
	t.Cleanup(cleanupHistory)
	resultsDB, cleanupResults := testingpkg.NewTestDB(t, "results")
	t.Cleanup(cleanupResults)

	log := zerolog.Nop()
	historyRepo := history.NewRepository(historyDB.Conn(), log)
	resultsRepo := results.NewRepository(resultsDB.Conn(), log)
	return NewBacktestRunner(historyRepo, resultsRepo, backtest.NewService(log), log), historyRepo, resultsRepo
}

func TestBacktestRunner_FromHistoryAndSave(t *testing.T) {
	runner, historyRepo, resultsRepo := newRunner(t)
	ctx := context.Background()

	_, err := historyRepo.UpsertTable(ctx, testingpkg.NewRotationTable(t, 120))
	require.NoError(t, err)

	result, err := runner.Run(ctx, strategy.DefaultConfig(), RunOptions{Save: true})
	require.NoError(t, err)
	require.NotEmpty(t, result.ID)
	assert.NotEmpty(t, result.Series.NAV)

	stored, err := resultsRepo.Get(ctx, result.ID)
	require.NoError(t, err)
	assert.Equal(t, result.Series.NAV, stored.Series.NAV)

	metrics := runner.Metrics()
	assert.Equal(t, int64(1), metrics.CallCount)
	assert.Equal(t, int64(0), metrics.FailureCount)
}

func TestBacktestRunner_TableOverride(t *testing.T) {
	runner := NewBacktestRunner(nil, nil, backtest.NewService(zerolog.Nop()), zerolog.Nop())

	table := testingpkg.NewRotationTable(t, 80)
	cfg := strategy.DefaultConfig()
	cfg.Mode = strategy.ModeMomentum

	result, err := runner.Run(context.Background(), cfg, RunOptions{Table: &table})
	require.NoError(t, err)
	assert.Empty(t, result.ID)

	_, err = runner.Run(context.Background(), cfg, RunOptions{Table: &table, Save: true})
	assert.Error(t, err)

	_, err = runner.Run(context.Background(), cfg, RunOptions{})
	assert.Error(t, err)
}

func TestBacktestRunner_EmptyHistory(t *testing.T) {
	runner, _, _ := newRunner(t)

	_, err := runner.Run(context.Background(), strategy.DefaultConfig(), RunOptions{})
	assert.Error(t, err)
}

func TestInstruments(t *testing.T) {
	cfg := strategy.DefaultConfig()
	assert.Equal(t, []string{"510300", "510880", "159915", "513100", "518880"}, Instruments(cfg))

	cfg.Benchmark = "000300"
	ids := Instruments(cfg)
	assert.Len(t, ids, 6)
	assert.Equal(t, "000300", ids[5])
}
