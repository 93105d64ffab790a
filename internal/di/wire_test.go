package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotation/internal/config"
	"github.com/aristath/rotation/internal/modules/history"
	"github.com/aristath/rotation/internal/services"
	testingpkg "github.com/aristath/rotation/internal/testing"
)

func writePricesCSV(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "prices.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, history.WriteCSV(f, testingpkg.NewRotationTable(t, 120), nil))
	return path
}

func TestWire(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &config.Config{
		DataDir:          tmpDir,
		Port:             8080,
		PricesCSV:        writePricesCSV(t, tmpDir),
		BacktestSchedule: "@daily",
	}
	log := zerolog.Nop()

	container, jobs, err := Wire(cfg, log)
	require.NoError(t, err)
	require.NotNil(t, container)
	require.NotNil(t, jobs)
	t.Cleanup(func() { _ = container.Close() })

	// Verify container is fully populated
	assert.NotNil(t, container.HistoryDB)
	assert.NotNil(t, container.ResultsDB)
	assert.NotNil(t, container.BacktestRunner)
	assert.Len(t, container.Strategies, 1)
	assert.FileExists(t, cfg.HistoryDBPath())

	// Verify jobs are registered
	assert.ElementsMatch(t, []string{"check_databases", "scheduled_backtest"}, container.Scheduler.Jobs())

	// The imported prices are enough for a full run
	coverage, err := container.HistoryRepo.Coverage(context.Background())
	require.NoError(t, err)
	assert.Len(t, coverage, 5)
	assert.Equal(t, "159915", coverage[0].Instrument)
	assert.Equal(t, "ChiNext ETF", coverage[0].Name, "pool names are saved on startup")

	require.NoError(t, container.Scheduler.RunNow(jobs.Backtest))
	stored, err := container.ResultsRepo.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	assert.NoError(t, container.Scheduler.RunNow(jobs.CheckDatabases))
}

func TestWire_WithoutSchedule(t *testing.T) {
	cfg := &config.Config{DataDir: t.TempDir(), Port: 8080}

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.Equal(t, []string{"check_databases"}, container.Scheduler.Jobs())
	assert.Nil(t, container.BackupService)
	assert.Nil(t, jobs.Backup)

	_, err = container.BacktestRunner.Run(context.Background(), container.Strategies[0], services.RunOptions{})
	assert.Error(t, err, "empty history cannot be backtested")
}

func TestWire_BadStrategyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategies:\n  - mode: rsi\n"), 0644))

	_, _, err := Wire(&config.Config{DataDir: dir, Port: 8080, StrategyFile: path}, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire_WithBackups(t *testing.T) {
	cfg := &config.Config{
		DataDir: t.TempDir(),
		Port:    8080,
		Backup: config.BackupConfig{
			Bucket:          "rotation-backups",
			Endpoint:        "http://127.0.0.1:9000",
			Region:          "auto",
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			Schedule:        "0 0 4 * * *",
			RetentionDays:   7,
		},
	}

	container, jobs, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NotNil(t, container.BackupService)
	require.NotNil(t, jobs.Backup)
	assert.ElementsMatch(t, []string{"check_databases", "backup_databases"}, container.Scheduler.Jobs())
}
