package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/config"
	"github.com/aristath/rotation/internal/scheduler"
)

// checkDatabasesSchedule runs the integrity check at 03:00 every day
const checkDatabasesSchedule = "0 0 3 * * *"

// RegisterJobs creates the jobs and registers them with the scheduler.
// The backtest job is only scheduled when BACKTEST_SCHEDULE is set and the
// backup job only exists when backups are configured.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	container.Scheduler = scheduler.New(log)
	jobs := &JobInstances{}

	jobs.CheckDatabases = scheduler.NewCheckDatabasesJob(container.Databases()...)
	jobs.CheckDatabases.SetLogger(log.With().Str("job", "check_databases").Logger())
	if err := container.Scheduler.AddJob(checkDatabasesSchedule, jobs.CheckDatabases); err != nil {
		return nil, fmt.Errorf("failed to register check_databases job: %w", err)
	}

	jobs.Backtest = scheduler.NewBacktestJob(container.BacktestRunner, container.Strategies)
	jobs.Backtest.SetLogger(log.With().Str("job", "scheduled_backtest").Logger())
	if cfg.BacktestSchedule != "" {
		if err := container.Scheduler.AddJob(cfg.BacktestSchedule, jobs.Backtest); err != nil {
			return nil, fmt.Errorf("failed to register backtest job: %w", err)
		}
	}

	if container.BackupService != nil {
		jobs.Backup = scheduler.NewBackupJob(container.BackupService, cfg.Backup.RetentionDays)
		jobs.Backup.SetLogger(log.With().Str("job", "backup_databases").Logger())
		if err := container.Scheduler.AddJob(cfg.Backup.Schedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	log.Info().Strs("jobs", container.Scheduler.Jobs()).Msg("Jobs registered")
	return jobs, nil
}
