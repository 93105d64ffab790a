// Package strategy provides the signal strategies driven by the backtest:
// MACD crossover rotation and relative momentum rotation.
package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/indicators"
	"github.com/aristath/rotation/internal/modules/portfolio"
	"github.com/aristath/rotation/internal/modules/positions"
)

// Strategy modes
const (
	ModeMACD     = "macd"
	ModeMomentum = "momentum"
)

// SignalStrategy is the capability a backtest is parameterized over.
// Implementations share the position machine, aggregator and analyzer.
type SignalStrategy interface {
	// Name returns the strategy mode
	Name() string
	// MinHistory is the number of observations the indicators need
	MinHistory() int
	// ComputeIndicators derives one instrument's indicators from its observed prices
	ComputeIndicators(series domain.PriceSeries) (domain.IndicatorSeries, error)
	// GenerateSignals turns indicators into the per-date signal series
	GenerateSignals(table domain.PriceTable, pool []domain.Instrument, ind map[string]domain.IndicatorSeries) (domain.SignalSeries, error)
	// Allocate decides per-date exposure from the signals
	Allocate(signals domain.SignalSeries, pool []domain.Instrument) ([]portfolio.Allocation, []positions.Transition, error)
	// LatestStatus summarizes each instrument on the last date
	LatestStatus(pool []domain.Instrument, ind map[string]domain.IndicatorSeries, signals domain.SignalSeries, allocs []portfolio.Allocation) []Status
}

// Status is the per-instrument state on the last backtest date
type Status struct {
	Instrument     string   `json:"instrument" msgpack:"instrument"`
	Name           string   `json:"name" msgpack:"name"`
	Signal         string   `json:"signal" msgpack:"signal"`
	Held           bool     `json:"held" msgpack:"held"`
	Diff           *float64 `json:"diff,omitempty" msgpack:"diff,omitempty"`
	DEA            *float64 `json:"dea,omitempty" msgpack:"dea,omitempty"`
	MomentumReturn *float64 `json:"momentum_return,omitempty" msgpack:"momentum_return,omitempty"`
	MomentumScore  *float64 `json:"momentum_score,omitempty" msgpack:"momentum_score,omitempty"`
}

// MomentumParams configures the momentum strategy
type MomentumParams struct {
	Window int `json:"window" yaml:"window"`
}

// Config is a complete strategy definition
type Config struct {
	Name      string                `json:"name" yaml:"name"`
	Mode      string                `json:"mode" yaml:"mode"`
	Pool      []domain.Instrument   `json:"pool" yaml:"pool"`
	Start     string                `json:"start,omitempty" yaml:"start,omitempty"`
	End       string                `json:"end,omitempty" yaml:"end,omitempty"`
	Benchmark string                `json:"benchmark,omitempty" yaml:"benchmark,omitempty"`
	MACD      indicators.MACDParams `json:"macd" yaml:"macd"`
	Momentum  MomentumParams        `json:"momentum" yaml:"momentum"`
}

// DefaultPool is the five-ETF pool the rotation was designed around
func DefaultPool() []domain.Instrument {
	return []domain.Instrument{
		{ID: "510300", Name: "CSI 300 ETF"},
		{ID: "510880", Name: "Dividend ETF"},
		{ID: "159915", Name: "ChiNext ETF"},
		{ID: "513100", Name: "Nasdaq ETF"},
		{ID: "518880", Name: "Gold ETF"},
	}
}

// DefaultConfig returns the MACD 12/26/9 rotation over the default pool
func DefaultConfig() Config {
	return Config{
		Name:      "etf-rotation",
		Mode:      ModeMACD,
		Pool:      DefaultPool(),
		Start:     "20200101",
		Benchmark: "510300",
		MACD:      indicators.DefaultMACDParams(),
		Momentum:  MomentumParams{Window: 20},
	}
}

// Validate checks the pool and the parameters of the selected mode
func (c Config) Validate() error {
	if len(c.Pool) == 0 {
		return fmt.Errorf("%w: instrument pool is empty", domain.ErrInvalidParams)
	}
	seen := make(map[string]bool, len(c.Pool))
	for _, inst := range c.Pool {
		if inst.ID == "" {
			return fmt.Errorf("%w: pool entry without id", domain.ErrInvalidParams)
		}
		if seen[inst.ID] {
			return fmt.Errorf("%w: duplicate pool instrument %s", domain.ErrInvalidParams, inst.ID)
		}
		seen[inst.ID] = true
	}

	if _, _, err := c.Range(); err != nil {
		return err
	}

	switch c.Mode {
	case ModeMACD:
		return c.MACD.Validate()
	case ModeMomentum:
		if c.Momentum.Window < 2 {
			return fmt.Errorf("%w: momentum window must be at least 2 (got %d)", domain.ErrInvalidParams, c.Momentum.Window)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown strategy mode %q", domain.ErrInvalidParams, c.Mode)
}

// Range parses the backtest date range; empty bounds are open
func (c Config) Range() (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if c.Start != "" {
		if start, err = domain.ParseDate(c.Start); err != nil {
			return start, end, fmt.Errorf("%w: bad start date %q", domain.ErrInvalidParams, c.Start)
		}
	}
	if c.End != "" {
		if end, err = domain.ParseDate(c.End); err != nil {
			return start, end, fmt.Errorf("%w: bad end date %q", domain.ErrInvalidParams, c.End)
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, fmt.Errorf("%w: end date %s before start date %s", domain.ErrInvalidParams, c.End, c.Start)
	}
	return start, end, nil
}

// New builds the strategy selected by cfg.Mode
func New(cfg Config, log zerolog.Logger) (SignalStrategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeMACD:
		return NewMACDStrategy(cfg.MACD, log), nil
	case ModeMomentum:
		return NewMomentumStrategy(cfg.Momentum.Window, log), nil
	}
	return nil, fmt.Errorf("%w: unknown strategy mode %q", domain.ErrInvalidParams, cfg.Mode)
}

func floatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// lastDefined returns the last non-NaN value of a series
func lastDefined(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}

// rowLookup maps table rows to positions in an indicator series
func rowLookup(table domain.PriceTable, ind domain.IndicatorSeries) map[int]int {
	lookup := make(map[int]int, len(ind.Dates))
	for j, date := range ind.Dates {
		if row := table.RowIndex(date); row >= 0 {
			lookup[row] = j
		}
	}
	return lookup
}
