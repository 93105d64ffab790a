package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/aristath/rotation/internal/config"
	"github.com/aristath/rotation/internal/di"
	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/backtest"
	"github.com/aristath/rotation/internal/modules/history"
	"github.com/aristath/rotation/internal/modules/strategy"
	"github.com/aristath/rotation/internal/services"
	"github.com/aristath/rotation/internal/utils"
	"github.com/aristath/rotation/pkg/logger"
)

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "backtest"
	app.Usage = "ETF rotation backtests (MACD crossover or momentum ranking)"
	app.Writer = out
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "warn",
			Usage:   "debug, info, warn or error",
			EnvVars: []string{"LOG_LEVEL"},
		},
	}
	app.Commands = []*cli.Command{
		runCommand,
		importCommand,
		listCommand,
		showCommand,
		coverageCommand,
	}
	return app
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "run a strategy and print its report",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "csv", Usage: "wide price CSV; without it prices come from the history database"},
		&cli.StringFlag{Name: "strategy-file", Usage: "YAML strategy file", EnvVars: []string{"STRATEGY_FILE"}},
		&cli.StringFlag{Name: "name", Usage: "strategy to run from the strategy file (default: first)"},
		&cli.StringFlag{Name: "mode", Usage: "override the mode: macd or momentum"},
		&cli.StringFlag{Name: "pool", Usage: "override the pool with comma-separated instrument ids"},
		&cli.StringFlag{Name: "start", Usage: "override the start date (YYYYMMDD)"},
		&cli.StringFlag{Name: "end", Usage: "override the end date (YYYYMMDD)"},
		&cli.StringFlag{Name: "benchmark", Usage: "override the benchmark instrument"},
		&cli.BoolFlag{Name: "save", Usage: "store the result in the results database"},
		&cli.BoolFlag{Name: "json", Usage: "print the result as JSON instead of the text report"},
	},
	Action: runStrategy,
}

var importCommand = &cli.Command{
	Name:      "import",
	Usage:     "import a wide price CSV into the history database",
	ArgsUsage: "<prices.csv>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expected exactly one CSV path")
		}
		container, log, err := openContainer(c)
		if err != nil {
			return err
		}
		defer container.Close()

		n, err := di.ImportPrices(c.Context, container, c.Args().First(), log)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "imported %d prices\n", n)
		return nil
	},
}

var listCommand = &cli.Command{
	Name:  "list",
	Usage: "list stored backtest runs",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "limit", Value: 20},
	},
	Action: func(c *cli.Context) error {
		container, _, err := openContainer(c)
		if err != nil {
			return err
		}
		defer container.Close()

		runs, err := container.ResultsRepo.List(c.Context, c.Int("limit"))
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "Name", "Mode", "Range", "Total return", "Sharpe", "Max DD")
		for _, run := range runs {
			t.Row(
				run.ID,
				run.Name,
				run.Mode,
				run.Start.Format(domain.DateLayout)+" → "+run.End.Format(domain.DateLayout),
				fmt.Sprintf("%.2f%%", run.TotalReturn*100),
				fmt.Sprintf("%.4f", run.Sharpe),
				fmt.Sprintf("%.2f%%", run.MaxDrawdown*100),
			)
		}
		fmt.Fprintln(c.App.Writer, t.Render())
		return nil
	},
}

var showCommand = &cli.Command{
	Name:      "show",
	Usage:     "print the report of a stored run",
	ArgsUsage: "<id>",
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("expected exactly one run id")
		}
		container, _, err := openContainer(c)
		if err != nil {
			return err
		}
		defer container.Close()

		result, err := container.ResultsRepo.Get(c.Context, c.Args().First())
		if err != nil {
			return err
		}
		return backtest.Render(c.App.Writer, result)
	},
}

var coverageCommand = &cli.Command{
	Name:  "coverage",
	Usage: "show the stored price range of every instrument",
	Action: func(c *cli.Context) error {
		container, _, err := openContainer(c)
		if err != nil {
			return err
		}
		defer container.Close()

		coverage, err := container.HistoryRepo.Coverage(c.Context)
		if err != nil {
			return err
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("Instrument", "Name", "First", "Last", "Days")
		for _, cov := range coverage {
			t.Row(cov.Instrument, cov.Name,
				cov.First.Format(domain.DateLayout), cov.Last.Format(domain.DateLayout),
				fmt.Sprintf("%d", cov.Count))
		}
		fmt.Fprintln(c.App.Writer, t.Render())
		return nil
	},
}

func runStrategy(c *cli.Context) error {
	log := newLogger(c)

	configs, err := config.LoadStrategies(c.String("strategy-file"))
	if err != nil {
		return err
	}
	cfg, err := config.FindStrategy(configs, c.String("name"))
	if err != nil {
		return err
	}
	applyOverrides(c, &cfg)

	var opts services.RunOptions
	opts.Save = c.Bool("save")
	if path := c.String("csv"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open price file: %w", err)
		}
		defer f.Close()

		t, err := history.LoadCSV(f)
		if err != nil {
			return err
		}
		opts.Table = &t
	}

	var runner *services.BacktestRunner
	if opts.Table != nil && !opts.Save {
		runner = services.NewBacktestRunner(nil, nil, backtest.NewService(log), log)
	} else {
		container, _, err := openContainer(c)
		if err != nil {
			return err
		}
		defer container.Close()
		runner = container.BacktestRunner
	}

	result, err := runner.Run(c.Context, cfg, opts)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	if err := backtest.Render(c.App.Writer, result); err != nil {
		return err
	}
	if result.ID != "" {
		fmt.Fprintf(c.App.Writer, "\nsaved as %s\n", result.ID)
	}
	return nil
}

func applyOverrides(c *cli.Context, cfg *strategy.Config) {
	if v := c.String("mode"); v != "" {
		cfg.Mode = v
	}
	if ids := utils.ParseCSV(c.String("pool")); len(ids) > 0 {
		names := make(map[string]string, len(cfg.Pool))
		for _, inst := range cfg.Pool {
			names[inst.ID] = inst.Name
		}
		cfg.Pool = make([]domain.Instrument, len(ids))
		for i, id := range ids {
			cfg.Pool[i] = domain.Instrument{ID: id, Name: names[id]}
		}
	}
	if v := c.String("start"); v != "" {
		cfg.Start = v
	}
	if v := c.String("end"); v != "" {
		cfg.End = v
	}
	if c.IsSet("benchmark") {
		cfg.Benchmark = c.String("benchmark")
	}
}

func newLogger(c *cli.Context) zerolog.Logger {
	return logger.New(logger.Config{
		Level:  c.String("log-level"),
		Pretty: true,
		Output: c.App.ErrWriter,
	})
}

// openContainer wires the databases and services from the environment
// configuration. Jobs are registered but the scheduler is never started.
func openContainer(c *cli.Context) (*di.Container, zerolog.Logger, error) {
	log := newLogger(c)

	cfg, err := config.Load()
	if err != nil {
		return nil, log, err
	}
	// PRICES_CSV is a server startup import; the CLI has its own import command
	cfg.PricesCSV = ""

	container, _, err := di.Wire(cfg, log)
	if err != nil {
		return nil, log, err
	}
	return container, log, nil
}
