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

// MomentumStrategy holds the single pool instrument with the highest
// N-observation return, decided one date earlier.
type MomentumStrategy struct {
	window int
	log    zerolog.Logger
}

// NewMomentumStrategy creates a momentum rotation strategy over an N-observation window
func NewMomentumStrategy(window int, log zerolog.Logger) *MomentumStrategy {
	return &MomentumStrategy{
		window: window,
		log:    log.With().Str("strategy", ModeMomentum).Logger(),
	}
}

// Name returns "momentum"
func (s *MomentumStrategy) Name() string {
	return ModeMomentum
}

// MinHistory returns the momentum window
func (s *MomentumStrategy) MinHistory() int {
	return s.window
}

// ComputeIndicators computes momentum return and trend score over the observed prices
func (s *MomentumStrategy) ComputeIndicators(series domain.PriceSeries) (domain.IndicatorSeries, error) {
	return indicators.Momentum(series, s.window)
}

// GenerateSignals keeps only rows where every pool instrument has a defined
// momentum return and score, picks the instrument with the highest return on
// each kept row (ties go to the earlier pool entry) and shifts the picks one
// kept row forward. The first kept row is consumed by the shift.
//
// Returns ErrEmptyAfterFiltering when fewer than two rows survive.
func (s *MomentumStrategy) GenerateSignals(table domain.PriceTable, pool []domain.Instrument, ind map[string]domain.IndicatorSeries) (domain.SignalSeries, error) {
	if len(pool) == 0 {
		return domain.SignalSeries{}, fmt.Errorf("%w: instrument pool is empty", domain.ErrInvalidParams)
	}

	lookups := make([]map[int]int, len(pool))
	for i, inst := range pool {
		series, ok := ind[inst.ID]
		if !ok || series.Momentum == nil {
			s.log.Warn().Str("instrument", inst.ID).Msg("No momentum indicator, every row will be dropped")
			return domain.SignalSeries{}, fmt.Errorf("%w: no momentum for %s", domain.ErrEmptyAfterFiltering, inst.ID)
		}
		lookups[i] = rowLookup(table, series)
	}

	var keptRows []int
	var picks []string
	for row := 0; row < table.Len(); row++ {
		best := -1
		bestReturn := math.Inf(-1)
		complete := true
		for i, inst := range pool {
			j, ok := lookups[i][row]
			if !ok {
				complete = false
				break
			}
			m := ind[inst.ID].Momentum
			ret, score := m.Return[j], m.Score[j]
			if math.IsNaN(ret) || math.IsNaN(score) {
				complete = false
				break
			}
			if ret > bestReturn {
				best, bestReturn = i, ret
			}
		}
		if !complete || best < 0 {
			continue
		}
		keptRows = append(keptRows, row)
		picks = append(picks, pool[best].ID)
	}

	s.log.Info().
		Int("rows", table.Len()).
		Int("kept", len(keptRows)).
		Msg("Filtered momentum rows")

	if len(keptRows) < 2 {
		return domain.SignalSeries{}, fmt.Errorf("%w: %d of %d rows have complete momentum",
			domain.ErrEmptyAfterFiltering, len(keptRows), table.Len())
	}

	out := domain.SignalSeries{
		Dates:   make([]time.Time, len(keptRows)-1),
		Rows:    make([]int, len(keptRows)-1),
		Winners: make([]string, len(keptRows)-1),
	}
	for k := 1; k < len(keptRows); k++ {
		out.Dates[k-1] = table.Dates[keptRows[k]]
		out.Rows[k-1] = keptRows[k]
		out.Winners[k-1] = picks[k-1]
	}
	return out, nil
}

// Allocate puts full weight on each date's winner. The transitions record
// every change of winner as a sell of the old and a buy of the new holding.
func (s *MomentumStrategy) Allocate(signals domain.SignalSeries, pool []domain.Instrument) ([]portfolio.Allocation, []positions.Transition, error) {
	if len(signals.Winners) != signals.Len() {
		return nil, nil, fmt.Errorf("%w: %d winners for %d dates", domain.ErrInvalidParams, len(signals.Winners), signals.Len())
	}

	allocs := make([]portfolio.Allocation, signals.Len())
	var transitions []positions.Transition
	previous := ""
	for i, winner := range signals.Winners {
		date := signals.Dates[i]
		allocs[i] = portfolio.Allocation{
			Date:     date,
			Row:      rowAt(signals, i),
			Holdings: []portfolio.Holding{{Instrument: winner, Weight: 1.0}},
		}
		if winner != previous {
			if previous != "" {
				transitions = append(transitions, positions.Transition{Date: date, Instrument: previous, Action: domain.SignalSell})
			}
			transitions = append(transitions, positions.Transition{Date: date, Instrument: winner, Action: domain.SignalBuy})
			previous = winner
		}
	}

	s.log.Debug().Int("switches", len(transitions)).Msg("Allocated momentum winners")
	return allocs, transitions, nil
}

// LatestStatus reports each instrument's latest momentum and whether it is the current holding
func (s *MomentumStrategy) LatestStatus(pool []domain.Instrument, ind map[string]domain.IndicatorSeries, signals domain.SignalSeries, allocs []portfolio.Allocation) []Status {
	held := heldOnLast(allocs)

	out := make([]Status, 0, len(pool))
	for _, inst := range pool {
		st := Status{Instrument: inst.ID, Name: inst.Name, Signal: domain.SignalNone.String(), Held: held[inst.ID]}
		if st.Held {
			st.Signal = domain.SignalBuy.String()
		}
		if series, ok := ind[inst.ID]; ok && series.Momentum != nil {
			st.MomentumReturn = floatPtr(lastDefined(series.Momentum.Return))
			st.MomentumScore = floatPtr(lastDefined(series.Momentum.Score))
		}
		out = append(out, st)
	}
	return out
}
