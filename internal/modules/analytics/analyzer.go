// Package analytics scores a backtest's return and NAV series: summary,
// risk, benchmark-relative and calendar statistics.
package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/portfolio"
	"github.com/aristath/rotation/pkg/formulas"
)

// Stats are the headline statistics of one return series
type Stats struct {
	TotalReturn  float64 `json:"total_return" msgpack:"total_return"`
	AnnualReturn float64 `json:"annual_return" msgpack:"annual_return"`
	Volatility   float64 `json:"volatility" msgpack:"volatility"`
	Sharpe       float64 `json:"sharpe" msgpack:"sharpe"`
	MaxDrawdown  float64 `json:"max_drawdown" msgpack:"max_drawdown"`
	Days         int     `json:"days" msgpack:"days"`
}

// RiskStats describe the daily return distribution
type RiskStats struct {
	WinRate      float64 `json:"win_rate" msgpack:"win_rate"`
	LossRate     float64 `json:"loss_rate" msgpack:"loss_rate"`
	AvgWin       float64 `json:"avg_win" msgpack:"avg_win"`
	AvgLoss      float64 `json:"avg_loss" msgpack:"avg_loss"`
	WinLossRatio Ratio   `json:"win_loss_ratio" msgpack:"win_loss_ratio"`
	VaR95        float64 `json:"var_95" msgpack:"var_95"`
	VaR99        float64 `json:"var_99" msgpack:"var_99"`
	CVaR95       float64 `json:"cvar_95" msgpack:"cvar_95"`
}

// BenchmarkStats compares the strategy against a benchmark instrument
type BenchmarkStats struct {
	Instrument         string  `json:"instrument" msgpack:"instrument"`
	Stats              Stats   `json:"stats" msgpack:"stats"`
	ExcessReturn       float64 `json:"excess_return" msgpack:"excess_return"`
	ExcessAnnualReturn float64 `json:"excess_annual_return" msgpack:"excess_annual_return"`
	TrackingError      float64 `json:"tracking_error" msgpack:"tracking_error"`
	InformationRatio   float64 `json:"information_ratio" msgpack:"information_ratio"`
}

// Bucket is the compounded return of one calendar period
type Bucket struct {
	Period string  `json:"period" msgpack:"period"`
	Return float64 `json:"return" msgpack:"return"`
}

// CalendarStats summarize compounded returns per calendar bucket
type CalendarStats struct {
	Buckets  []Bucket `json:"buckets" msgpack:"buckets"`
	Mean     float64  `json:"mean" msgpack:"mean"`
	StdDev   float64  `json:"std_dev" msgpack:"std_dev"`
	Positive int      `json:"positive" msgpack:"positive"`
	Count    int      `json:"count" msgpack:"count"`
}

// Report is the complete performance report of one run
type Report struct {
	Strategy  Stats           `json:"strategy" msgpack:"strategy"`
	Risk      RiskStats       `json:"risk" msgpack:"risk"`
	Benchmark *BenchmarkStats `json:"benchmark,omitempty" msgpack:"benchmark,omitempty"`
	Monthly   CalendarStats   `json:"monthly" msgpack:"monthly"`
	Yearly    CalendarStats   `json:"yearly" msgpack:"yearly"`
}

// Benchmark is a benchmark's daily returns aligned to the strategy dates
type Benchmark struct {
	Instrument string
	Returns    []float64
}

// Analyzer computes performance reports
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates a new performance analyzer
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{
		log: log.With().Str("component", "performance_analyzer").Logger(),
	}
}

// Analyze derives the report from a strategy return series. A nil benchmark
// leaves the benchmark block out.
func (a *Analyzer) Analyze(series portfolio.ReturnSeries, benchmark *Benchmark) (Report, error) {
	if series.Len() == 0 {
		return Report{}, domain.ErrEmptyAfterFiltering
	}
	if len(series.Returns) != series.Len() || len(series.NAV) != series.Len() {
		return Report{}, fmt.Errorf("%w: return series has %d dates, %d returns, %d NAV values",
			domain.ErrInvalidParams, series.Len(), len(series.Returns), len(series.NAV))
	}

	report := Report{
		Strategy: SummaryStats(series.Returns, series.NAV),
		Risk:     DistributionStats(series.Returns),
		Monthly:  Calendar(series.Dates, series.Returns, monthly),
		Yearly:   Calendar(series.Dates, series.Returns, yearly),
	}

	if benchmark != nil {
		if len(benchmark.Returns) != series.Len() {
			return Report{}, fmt.Errorf("%w: benchmark has %d returns for %d dates",
				domain.ErrInvalidParams, len(benchmark.Returns), series.Len())
		}
		report.Benchmark = compare(report.Strategy, series.Returns, benchmark)
	}

	a.log.Info().
		Float64("total_return", report.Strategy.TotalReturn).
		Float64("sharpe", report.Strategy.Sharpe).
		Float64("max_drawdown", report.Strategy.MaxDrawdown).
		Bool("benchmark", report.Benchmark != nil).
		Msg("Performance analyzed")

	return report, nil
}

// SummaryStats computes total/annual return, volatility, Sharpe and max
// drawdown with the 252-day convention. Sharpe is 0 when volatility is 0.
func SummaryStats(returns, nav []float64) Stats {
	stats := Stats{Days: len(nav)}
	if len(nav) == 0 {
		return stats
	}

	final := nav[len(nav)-1]
	stats.TotalReturn = final - 1
	stats.AnnualReturn = math.Pow(final, formulas.TradingDaysPerYear/float64(len(nav))) - 1
	stats.Volatility = formulas.AnnualizedVolatility(returns)
	if stats.Volatility > 0 {
		stats.Sharpe = stats.AnnualReturn / stats.Volatility
	}
	stats.MaxDrawdown = formulas.MaxDrawdown(nav)
	return stats
}

// DistributionStats computes win/loss and tail statistics of daily returns.
// The win/loss ratio is +Inf when there is no losing day.
func DistributionStats(returns []float64) RiskStats {
	var stats RiskStats
	if len(returns) == 0 {
		return stats
	}

	wins := formulas.Filter(returns, func(r float64) bool { return r > 0 })
	losses := formulas.Filter(returns, func(r float64) bool { return r < 0 })

	n := float64(len(returns))
	stats.WinRate = float64(len(wins)) / n
	stats.LossRate = float64(len(losses)) / n
	stats.AvgWin = formulas.Mean(wins)
	stats.AvgLoss = formulas.Mean(losses)

	if stats.AvgLoss != 0 {
		stats.WinLossRatio = Ratio(math.Abs(stats.AvgWin / stats.AvgLoss))
	} else {
		stats.WinLossRatio = Ratio(math.Inf(1))
	}

	stats.VaR95 = formulas.ValueAtRisk(returns, 0.95)
	stats.VaR99 = formulas.ValueAtRisk(returns, 0.99)
	stats.CVaR95 = formulas.ConditionalVaR(returns, stats.VaR95)
	return stats
}

// compare computes the benchmark block. The benchmark NAV compounds its own
// returns; information ratio is 0 when tracking error is 0.
func compare(strategy Stats, strategyReturns []float64, benchmark *Benchmark) *BenchmarkStats {
	benchNAV := formulas.CumulativeNAV(benchmark.Returns)
	out := &BenchmarkStats{
		Instrument: benchmark.Instrument,
		Stats:      SummaryStats(benchmark.Returns, benchNAV),
	}

	out.ExcessReturn = strategy.TotalReturn - out.Stats.TotalReturn
	out.ExcessAnnualReturn = strategy.AnnualReturn - out.Stats.AnnualReturn

	active := make([]float64, len(strategyReturns))
	for i := range active {
		active[i] = strategyReturns[i] - benchmark.Returns[i]
	}
	out.TrackingError = formulas.AnnualizedVolatility(active)
	if out.TrackingError > 0 {
		out.InformationRatio = out.ExcessAnnualReturn / out.TrackingError
	}
	return out
}

// calendarPeriod buckets dates by calendar month or year
type calendarPeriod struct {
	layout string
	start  func(time.Time) time.Time
	next   func(time.Time) time.Time
}

var (
	monthly = calendarPeriod{
		layout: "2006-01",
		start: func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
		},
		next: func(t time.Time) time.Time { return t.AddDate(0, 1, 0) },
	}
	yearly = calendarPeriod{
		layout: "2006",
		start: func(t time.Time) time.Time {
			return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
		},
		next: func(t time.Time) time.Time { return t.AddDate(1, 0, 0) },
	}
)

// Calendar compounds returns into consecutive calendar buckets. Every period
// between the first and last date gets a bucket; a period without dates
// counts as a 0% return.
func Calendar(dates []time.Time, returns []float64, p calendarPeriod) CalendarStats {
	var stats CalendarStats
	var current []float64
	var period time.Time
	started := false

	flush := func() {
		stats.Buckets = append(stats.Buckets, Bucket{
			Period: period.Format(p.layout),
			Return: formulas.CompoundReturn(current),
		})
		current = current[:0]
	}

	for i, date := range dates {
		start := p.start(date)
		if !started {
			period, started = start, true
		}
		for period.Before(start) {
			flush()
			period = p.next(period)
		}
		current = append(current, returns[i])
	}
	if started {
		flush()
	}

	values := make([]float64, len(stats.Buckets))
	for i, b := range stats.Buckets {
		values[i] = b.Return
		if b.Return > 0 {
			stats.Positive++
		}
	}
	stats.Count = len(values)
	stats.Mean = formulas.Mean(values)
	stats.StdDev = formulas.StdDev(values)
	return stats
}
