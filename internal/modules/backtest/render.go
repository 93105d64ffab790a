package backtest

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/aristath/rotation/internal/domain"
	"github.com/aristath/rotation/internal/modules/analytics"
)

// previewRows is how many leading and trailing dates the text report shows
const previewRows = 10

// Render writes the plain-text report of a result. Styling is applied only
// when w is a terminal.
func Render(w io.Writer, result *Result) error {
	r := lipgloss.NewRenderer(w)
	heading := r.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

	var b strings.Builder
	section := func(title string) {
		b.WriteString("\n")
		b.WriteString(heading.Render(title))
		b.WriteString("\n")
	}
	line := func(label string, format string, args ...interface{}) {
		fmt.Fprintf(&b, "  %-24s "+format+"\n", append([]interface{}{label}, args...)...)
	}

	fmt.Fprintf(&b, "%s\n", heading.Render(fmt.Sprintf("Backtest %s (%s)", result.Config.Name, result.Config.Mode)))
	fmt.Fprintf(&b, "  %s → %s, %d trading days\n",
		result.Start.Format(domain.DateLayout), result.End.Format(domain.DateLayout), result.Series.Len())

	section("First rows")
	b.WriteString(seriesTable(result, 0, min(previewRows, result.Series.Len())))
	b.WriteString("\n")
	if result.Series.Len() > previewRows {
		section("Last rows")
		b.WriteString(seriesTable(result, max(result.Series.Len()-previewRows, previewRows), result.Series.Len()))
		b.WriteString("\n")
	}

	rep := result.Report
	section("Performance")
	line("Total return", "%s", pct(rep.Strategy.TotalReturn))
	line("Annual return", "%s", pct(rep.Strategy.AnnualReturn))
	line("Annual volatility", "%s", pct(rep.Strategy.Volatility))
	line("Sharpe ratio", "%.4f", rep.Strategy.Sharpe)
	line("Max drawdown", "%s", pct(rep.Strategy.MaxDrawdown))

	section("Holding days")
	line("Invested", "%d/%d (%.1f%%)", result.Holdings.InvestedDays, result.Holdings.TotalDays, result.Holdings.Ratio*100)
	for _, h := range result.Holdings.Instruments {
		line(instrumentLabel(h.Instrument, h.Name), "%d days (%.1f%%)", h.Days, h.Ratio*100)
	}

	if bm := rep.Benchmark; bm != nil {
		section("Benchmark " + bm.Instrument)
		line("Total return", "%s", pct(bm.Stats.TotalReturn))
		line("Annual return", "%s", pct(bm.Stats.AnnualReturn))
		line("Annual volatility", "%s", pct(bm.Stats.Volatility))
		line("Sharpe ratio", "%.4f", bm.Stats.Sharpe)
		line("Max drawdown", "%s", pct(bm.Stats.MaxDrawdown))
		line("Excess return", "%s", pct(bm.ExcessReturn))
		line("Excess annual return", "%s", pct(bm.ExcessAnnualReturn))
		line("Tracking error", "%s", pct(bm.TrackingError))
		line("Information ratio", "%.4f", bm.InformationRatio)
	}

	section("Risk")
	line("Win rate", "%s", pct(rep.Risk.WinRate))
	line("Loss rate", "%s", pct(rep.Risk.LossRate))
	line("Average win", "%s", pct(rep.Risk.AvgWin))
	line("Average loss", "%s", pct(rep.Risk.AvgLoss))
	line("Win/loss ratio", "%s", rep.Risk.WinLossRatio)
	line("95% VaR", "%s", pct(rep.Risk.VaR95))
	line("99% VaR", "%s", pct(rep.Risk.VaR99))
	line("95% CVaR", "%s", pct(rep.Risk.CVaR95))

	section("Calendar")
	writeCalendar(line, "Monthly", rep.Monthly)
	if len(rep.Yearly.Buckets) > 1 {
		for _, bucket := range rep.Yearly.Buckets {
			line(bucket.Period, "%s", pct(bucket.Return))
		}
	}

	section("Latest status")
	for _, st := range result.LatestStatus {
		held := "not held"
		if st.Held {
			held = "held"
		}
		detail := ""
		switch {
		case st.Diff != nil && st.DEA != nil:
			detail = fmt.Sprintf(" diff=%.4f dea=%.4f", *st.Diff, *st.DEA)
		case st.MomentumReturn != nil:
			detail = fmt.Sprintf(" momentum=%s", pct(*st.MomentumReturn))
		}
		line(instrumentLabel(st.Instrument, st.Name), "%-5s %s%s", st.Signal, held, detail)
	}

	if len(result.Warnings) > 0 {
		section("Warnings")
		for _, warning := range result.Warnings {
			fmt.Fprintf(&b, "  - %s\n", warning)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func seriesTable(result *Result, from, to int) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("date", "return", "nav", "holding")
	for i := from; i < to; i++ {
		t.Row(
			result.Series.Dates[i].Format(domain.DateLayout),
			fmt.Sprintf("%.4f", result.Series.Returns[i]),
			fmt.Sprintf("%.4f", result.Series.NAV[i]),
			result.Series.Label(i),
		)
	}
	return t.String()
}

func writeCalendar(line func(string, string, ...interface{}), label string, stats analytics.CalendarStats) {
	if stats.Count == 0 {
		return
	}
	line(label+" mean", "%s", pct(stats.Mean))
	line(label+" std dev", "%s", pct(stats.StdDev))
	line(label+" positive", "%d/%d (%.1f%%)", stats.Positive, stats.Count, float64(stats.Positive)/float64(stats.Count)*100)
}

func instrumentLabel(id, name string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (%s)", id, name)
}

func pct(v float64) string {
	return fmt.Sprintf("%.4f (%.2f%%)", v, v*100)
}
