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

// minRecommendedRows is the table length below which MACD crosses are
// mostly warm-up noise
const minRecommendedRows = 60

// MACDStrategy holds every instrument with an open golden cross at equal
// weight 1/|pool|.
type MACDStrategy struct {
	params indicators.MACDParams
	log    zerolog.Logger
}

// NewMACDStrategy creates a MACD crossover strategy
func NewMACDStrategy(params indicators.MACDParams, log zerolog.Logger) *MACDStrategy {
	return &MACDStrategy{
		params: params,
		log:    log.With().Str("strategy", ModeMACD).Logger(),
	}
}

// Name returns "macd"
func (s *MACDStrategy) Name() string {
	return ModeMACD
}

// MinHistory returns the long span
func (s *MACDStrategy) MinHistory() int {
	return s.params.Long
}

// ComputeIndicators runs MACD over the observed prices
func (s *MACDStrategy) ComputeIndicators(series domain.PriceSeries) (domain.IndicatorSeries, error) {
	return indicators.MACD(series, s.params)
}

// GenerateSignals detects crosses between consecutive observations of each
// instrument and places them on the table row of the later observation.
//
//	buy:  diff[t] > dea[t] and diff[t-1] <= dea[t-1]
//	sell: diff[t] < dea[t] and diff[t-1] >= dea[t-1]
//
// A cross needs a defined previous value, so the first observation never
// signals. Rows where an instrument is unobserved carry SignalNone. Every
// table row is kept.
func (s *MACDStrategy) GenerateSignals(table domain.PriceTable, pool []domain.Instrument, ind map[string]domain.IndicatorSeries) (domain.SignalSeries, error) {
	if table.Len() == 0 {
		return domain.SignalSeries{}, domain.ErrEmptyAfterFiltering
	}
	if recommended := max(2*s.params.Long, minRecommendedRows); table.Len() < recommended {
		s.log.Warn().
			Int("rows", table.Len()).
			Int("recommended", recommended).
			Msg("Short price history, MACD signals may be unreliable")
	}

	out := domain.SignalSeries{
		Dates:   append([]time.Time(nil), table.Dates...),
		Rows:    make([]int, table.Len()),
		Actions: make(map[string][]domain.Signal, len(pool)),
	}
	for i := range out.Rows {
		out.Rows[i] = i
	}

	for _, inst := range pool {
		actions := make([]domain.Signal, table.Len())
		out.Actions[inst.ID] = actions

		series, ok := ind[inst.ID]
		if !ok || series.Empty() || series.MACD == nil {
			continue
		}

		diff, dea := series.MACD.Diff, series.MACD.DEA
		buys, sells := 0, 0
		for t := 1; t < len(series.Dates); t++ {
			if math.IsNaN(diff[t]) || math.IsNaN(dea[t]) || math.IsNaN(diff[t-1]) || math.IsNaN(dea[t-1]) {
				continue
			}
			row := table.RowIndex(series.Dates[t])
			if row < 0 {
				return domain.SignalSeries{}, fmt.Errorf("%w: %s indicator date %s not in table",
					domain.ErrInvalidPriceTable, inst.ID, series.Dates[t].Format(domain.DateLayout))
			}
			switch {
			case diff[t] > dea[t] && diff[t-1] <= dea[t-1]:
				actions[row] = domain.SignalBuy
				buys++
			case diff[t] < dea[t] && diff[t-1] >= dea[t-1]:
				actions[row] = domain.SignalSell
				sells++
			}
		}

		s.log.Info().
			Str("instrument", inst.ID).
			Int("buy_signals", buys).
			Int("sell_signals", sells).
			Msg("Generated MACD signals")
	}

	return out, nil
}

// Allocate replays the signals through a fresh position machine and gives
// each held instrument weight 1/|pool|. The remainder is cash.
func (s *MACDStrategy) Allocate(signals domain.SignalSeries, pool []domain.Instrument) ([]portfolio.Allocation, []positions.Transition, error) {
	if len(pool) == 0 {
		return nil, nil, fmt.Errorf("%w: instrument pool is empty", domain.ErrInvalidParams)
	}

	steps, transitions, err := positions.NewMachine(pool, s.log).Replay(signals)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to replay positions: %w", err)
	}

	weight := 1.0 / float64(len(pool))
	allocs := make([]portfolio.Allocation, len(steps))
	for i, step := range steps {
		holdings := make([]portfolio.Holding, len(step.Held))
		for j, id := range step.Held {
			holdings[j] = portfolio.Holding{Instrument: id, Weight: weight}
		}
		allocs[i] = portfolio.Allocation{Date: step.Date, Row: rowAt(signals, i), Holdings: holdings}
	}
	return allocs, transitions, nil
}

// LatestStatus reports the last signal, held state and latest MACD values
func (s *MACDStrategy) LatestStatus(pool []domain.Instrument, ind map[string]domain.IndicatorSeries, signals domain.SignalSeries, allocs []portfolio.Allocation) []Status {
	held := heldOnLast(allocs)
	last := signals.Len() - 1

	out := make([]Status, 0, len(pool))
	for _, inst := range pool {
		st := Status{Instrument: inst.ID, Name: inst.Name, Signal: domain.SignalNone.String(), Held: held[inst.ID]}
		if last >= 0 {
			if actions, ok := signals.Actions[inst.ID]; ok && last < len(actions) {
				st.Signal = actions[last].String()
			}
		}
		if series, ok := ind[inst.ID]; ok && series.MACD != nil {
			st.Diff = floatPtr(lastDefined(series.MACD.Diff))
			st.DEA = floatPtr(lastDefined(series.MACD.DEA))
		}
		out = append(out, st)
	}
	return out
}

func rowAt(signals domain.SignalSeries, i int) int {
	if i < len(signals.Rows) {
		return signals.Rows[i]
	}
	return i
}

func heldOnLast(allocs []portfolio.Allocation) map[string]bool {
	held := make(map[string]bool)
	if len(allocs) == 0 {
		return held
	}
	for _, h := range allocs[len(allocs)-1].Holdings {
		if h.Weight > 0 {
			held[h.Instrument] = true
		}
	}
	return held
}
