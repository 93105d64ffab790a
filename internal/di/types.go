/**
 * Package di provides dependency injection type definitions.
 *
 * This package defines the Container type which holds all application dependencies.
 * The Container is the single source of truth for all service instances and is
 * passed to the server and the CLI for access to services.
 */
package di

import (
	"github.com/aristath/rotation/internal/database"
	"github.com/aristath/rotation/internal/modules/backtest"
	"github.com/aristath/rotation/internal/modules/history"
	"github.com/aristath/rotation/internal/modules/results"
	"github.com/aristath/rotation/internal/modules/strategy"
	"github.com/aristath/rotation/internal/reliability"
	"github.com/aristath/rotation/internal/scheduler"
	"github.com/aristath/rotation/internal/services"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: history.db (daily closes) and results.db (stored runs)
 * - Repositories: price history and backtest results
 * - Services: the backtest pipeline and the runner that feeds and stores it
 * - Backups: optional snapshots to S3-compatible storage
 * - Scheduler: cron-driven backtests, database checks and backups
 */
type Container struct {
	// Databases
	HistoryDB *database.DB
	ResultsDB *database.DB

	// Repositories
	HistoryRepo *history.Repository
	ResultsRepo *results.Repository

	// Services
	BacktestService *backtest.Service
	BacktestRunner  *services.BacktestRunner

	// BackupService is nil when BACKUP_BUCKET is not set
	BackupService *reliability.BackupService

	// Strategies loaded from the strategy file (or the built-in default)
	Strategies []strategy.Config

	// Scheduler
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered jobs so they can be triggered manually
type JobInstances struct {
	Backtest       *scheduler.BacktestJob
	CheckDatabases *scheduler.CheckDatabasesJob
	Backup         *scheduler.BackupJob // nil when backups are disabled
}

// Databases returns every open database
func (c *Container) Databases() []*database.DB {
	var dbs []*database.DB
	for _, db := range []*database.DB{c.HistoryDB, c.ResultsDB} {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return dbs
}

// Close closes every open database
func (c *Container) Close() error {
	var firstErr error
	for _, db := range c.Databases() {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
