package portfolio

import "github.com/aristath/rotation/internal/domain"

// HoldingDays counts the dates an instrument was held
type HoldingDays struct {
	Instrument string  `json:"instrument" msgpack:"instrument"`
	Name       string  `json:"name" msgpack:"name"`
	Days       int     `json:"days" msgpack:"days"`
	Ratio      float64 `json:"ratio" msgpack:"ratio"`
}

// HoldingSummary describes how much of the backtest was spent invested
type HoldingSummary struct {
	TotalDays    int           `json:"total_days" msgpack:"total_days"`
	InvestedDays int           `json:"invested_days" msgpack:"invested_days"`
	Ratio        float64       `json:"ratio" msgpack:"ratio"`
	Instruments  []HoldingDays `json:"instruments" msgpack:"instruments"`
}

// SummarizeHoldings counts invested days overall and per pool instrument
func SummarizeHoldings(series ReturnSeries, pool []domain.Instrument) HoldingSummary {
	summary := HoldingSummary{TotalDays: series.Len()}

	counts := make(map[string]int, len(pool))
	for _, held := range series.Holdings {
		if len(held) > 0 {
			summary.InvestedDays++
		}
		for _, id := range held {
			counts[id]++
		}
	}

	if summary.TotalDays > 0 {
		summary.Ratio = float64(summary.InvestedDays) / float64(summary.TotalDays)
	}

	for _, inst := range pool {
		days := HoldingDays{Instrument: inst.ID, Name: inst.Name, Days: counts[inst.ID]}
		if summary.TotalDays > 0 {
			days.Ratio = float64(days.Days) / float64(summary.TotalDays)
		}
		summary.Instruments = append(summary.Instruments, days)
	}
	return summary
}
