package di

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/config"
	"github.com/aristath/rotation/internal/modules/backtest"
	"github.com/aristath/rotation/internal/modules/history"
	"github.com/aristath/rotation/internal/modules/results"
	"github.com/aristath/rotation/internal/reliability"
	"github.com/aristath/rotation/internal/services"
)

// InitializeRepositories creates the repositories on top of the open databases
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container.HistoryDB == nil || container.ResultsDB == nil {
		return fmt.Errorf("databases not initialized")
	}
	container.HistoryRepo = history.NewRepository(container.HistoryDB.Conn(), log)
	container.ResultsRepo = results.NewRepository(container.ResultsDB.Conn(), log)
	return nil
}

// InitializeServices loads the strategy file and builds the backtest services
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	strategies, err := config.LoadStrategies(cfg.StrategyFile)
	if err != nil {
		return err
	}
	container.Strategies = strategies

	container.BacktestService = backtest.NewService(log)
	container.BacktestRunner = services.NewBacktestRunner(
		container.HistoryRepo,
		container.ResultsRepo,
		container.BacktestService,
		log,
	)

	// Pool names are stored so coverage listings can show them
	for _, s := range strategies {
		if err := container.HistoryRepo.SaveInstruments(context.Background(), s.Pool); err != nil {
			return fmt.Errorf("failed to save instruments of %s: %w", s.Name, err)
		}
	}

	if cfg.Backup.Enabled() {
		client, err := reliability.NewS3Client(context.Background(), reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Region:          cfg.Backup.Region,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup client: %w", err)
		}
		container.BackupService = reliability.NewBackupService(client, container.Databases(), cfg.DataDir, log)
	}

	log.Info().
		Int("strategies", len(strategies)).
		Bool("backups", container.BackupService != nil).
		Msg("Services initialized")
	return nil
}

// ImportPrices loads a wide price CSV into the history store
func ImportPrices(ctx context.Context, container *Container, path string, log zerolog.Logger) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open price file: %w", err)
	}
	defer f.Close()

	table, err := history.LoadCSV(f)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	n, err := container.HistoryRepo.UpsertTable(ctx, table)
	if err != nil {
		return 0, err
	}

	log.Info().
		Str("path", path).
		Int("rows", n).
		Int("dates", table.Len()).
		Strs("instruments", table.Instruments()).
		Msg("Imported prices")
	return n, nil
}
