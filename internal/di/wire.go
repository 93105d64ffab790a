// Package di provides dependency injection wiring and initialization.
package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container
// This is the main entry point for dependency injection
// Order of operations:
// 1. Initialize databases
// 2. Initialize repositories
// 3. Initialize services
// 4. Import PRICES_CSV when configured
// 5. Register jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, *JobInstances, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	fail := func(step string, err error) (*Container, *JobInstances, error) {
		_ = container.Close()
		return nil, nil, fmt.Errorf("failed to %s: %w", step, err)
	}

	if err := InitializeRepositories(container, log); err != nil {
		return fail("initialize repositories", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		return fail("initialize services", err)
	}

	if cfg.PricesCSV != "" {
		if _, err := ImportPrices(context.Background(), container, cfg.PricesCSV, log); err != nil {
			return fail("import prices", err)
		}
	}

	jobs, err := RegisterJobs(container, cfg, log)
	if err != nil {
		return fail("register jobs", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, jobs, nil
}
