// Package positions implements the per-instrument held/not-held state machine
// replayed over dates in ascending order.
package positions

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rotation/internal/domain"
)

// Transition is one state change produced by a signal
type Transition struct {
	Date       time.Time     `json:"date" msgpack:"date"`
	Instrument string        `json:"instrument" msgpack:"instrument"`
	Action     domain.Signal `json:"action" msgpack:"action"`
}

// Step is the state after processing one date: the held instruments in pool order
type Step struct {
	Date time.Time `json:"date" msgpack:"date"`
	Held []string  `json:"held" msgpack:"held"`
}

// Snapshot is a copy of the machine state that can be restored later
type Snapshot struct {
	LastDate time.Time
	Held     map[string]bool
}

// Machine holds per-instrument held state for one backtest run.
//
// States are held / not held. A buy moves not held → held, a sell moves
// held → not held, everything else leaves the state alone. Dates must be
// applied in strictly ascending order because each date's state depends on
// the previous one. A Machine is owned by a single run and is not safe for
// concurrent use.
type Machine struct {
	pool     []string
	held     map[string]bool
	lastDate time.Time
	log      zerolog.Logger
}

// NewMachine creates a machine with every pool instrument not held
func NewMachine(pool []domain.Instrument, log zerolog.Logger) *Machine {
	m := &Machine{
		pool: domain.InstrumentIDs(pool),
		held: make(map[string]bool, len(pool)),
		log:  log.With().Str("component", "position_machine").Logger(),
	}
	for _, id := range m.pool {
		m.held[id] = false
	}
	return m
}

// Held reports whether the instrument is currently held
func (m *Machine) Held(id string) bool {
	return m.held[id]
}

// HeldInstruments returns the held instruments in pool order
func (m *Machine) HeldInstruments() []string {
	out := make([]string, 0, len(m.pool))
	for _, id := range m.pool {
		if m.held[id] {
			out = append(out, id)
		}
	}
	return out
}

// Apply processes one date's signals and returns the transitions it caused.
// Instruments are visited in pool order; signals for instruments outside the
// pool are ignored.
func (m *Machine) Apply(date time.Time, actions map[string]domain.Signal) ([]Transition, error) {
	if !m.lastDate.IsZero() && !date.After(m.lastDate) {
		return nil, fmt.Errorf("%w: date %s is not after %s", domain.ErrInvalidParams,
			date.Format(domain.DateLayout), m.lastDate.Format(domain.DateLayout))
	}
	m.lastDate = date

	var transitions []Transition
	for _, id := range m.pool {
		switch actions[id] {
		case domain.SignalBuy:
			if !m.held[id] {
				m.held[id] = true
				transitions = append(transitions, Transition{Date: date, Instrument: id, Action: domain.SignalBuy})
				m.log.Debug().Str("date", date.Format(domain.DateLayout)).Str("instrument", id).Msg("Golden cross, position opened")
			}
		case domain.SignalSell:
			if m.held[id] {
				m.held[id] = false
				transitions = append(transitions, Transition{Date: date, Instrument: id, Action: domain.SignalSell})
				m.log.Debug().Str("date", date.Format(domain.DateLayout)).Str("instrument", id).Msg("Death cross, position closed")
			}
		}
	}
	return transitions, nil
}

// Replay folds the signal series over its dates in order, returning the
// held set after each date and every transition.
func (m *Machine) Replay(signals domain.SignalSeries) ([]Step, []Transition, error) {
	steps := make([]Step, 0, signals.Len())
	var transitions []Transition

	for i, date := range signals.Dates {
		changed, err := m.Apply(date, signals.ActionsAt(i))
		if err != nil {
			return nil, nil, err
		}
		transitions = append(transitions, changed...)
		steps = append(steps, Step{Date: date, Held: m.HeldInstruments()})
	}
	return steps, transitions, nil
}

// Snapshot captures the current state
func (m *Machine) Snapshot() Snapshot {
	held := make(map[string]bool, len(m.held))
	for id, h := range m.held {
		held[id] = h
	}
	return Snapshot{LastDate: m.lastDate, Held: held}
}

// Restore resets the machine to a previously captured state
func (m *Machine) Restore(s Snapshot) {
	m.lastDate = s.LastDate
	for _, id := range m.pool {
		m.held[id] = s.Held[id]
	}
}
