package results

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/analytics"
	"github.com/aristath/rotation/internal/modules/backtest"
	"github.com/aristath/rotation/internal/modules/strategy"
	testingpkg "github.com/aristath/rotation/internal/testing"
)

func runBacktest(t *testing.T, mode string) *backtest.Result {
	t.Helper()

	cfg := strategy.DefaultConfig()
	cfg.Mode = mode
	result, err := backtest.NewService(zerolog.Nop()).Run(context.Background(), backtest.Request{
		Strategy: cfg,
		Table:    testingpkg.NewRotationTable(t, 120),
	})
	require.NoError(t, err)
	return result
}

func TestRepository_SaveAndGet(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "results")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	result := runBacktest(t, strategy.ModeMACD)
	id, err := repo.Save(ctx, result)
	require.NoError(t, err)

	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, result.ID)

	loaded, err := repo.Get(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, loaded.ID)
	assert.Equal(t, result.Config.Pool, loaded.Config.Pool)
	assert.Equal(t, result.Series.NAV, loaded.Series.NAV)
	assert.True(t, result.Start.Equal(loaded.Start))
	assert.Equal(t, result.Report.Strategy, loaded.Report.Strategy)
	assert.Equal(t, result.Signals.Actions, loaded.Signals.Actions)
	assert.Len(t, loaded.LatestStatus, len(result.LatestStatus))
	require.Contains(t, loaded.Indicators, "510300")
	assert.Equal(t, result.Indicators["510300"].MACD.Diff, loaded.Indicators["510300"].MACD.Diff)
}

func TestRepository_PreservesInfiniteRatio(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "results")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	result := runBacktest(t, strategy.ModeMACD)
	result.Report.Risk.WinLossRatio = analytics.Ratio(math.Inf(1))

	id, err := repo.Save(ctx, result)
	require.NoError(t, err)
	loaded, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, math.IsInf(loaded.Report.Risk.WinLossRatio.Float(), 1))
}

func TestRepository_GetUnknown(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "results")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())

	_, err := repo.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrRunNotFound))
	assert.True(t, errors.Is(repo.Delete(context.Background(), "missing"), domain.ErrRunNotFound))
}

func TestRepository_ListNewestFirst(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "results")
	defer cleanup()
	repo := NewRepository(db.Conn(), zerolog.Nop())
	ctx := context.Background()

	first, err := repo.Save(ctx, runBacktest(t, strategy.ModeMACD))
	require.NoError(t, err)
	second, err := repo.Save(ctx, runBacktest(t, strategy.ModeMomentum))
	require.NoError(t, err)

	list, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID)
	assert.Equal(t, strategy.ModeMomentum, list[0].Mode)
	assert.Equal(t, first, list[1].ID)
	assert.Greater(t, list[1].FinalNAV, 0.0)

	limited, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, repo.Delete(ctx, first))
	list, err = repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
