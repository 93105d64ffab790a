package domain

import (
	"fmt"
	"time"
)

// Signal is the discrete per-date trading signal for one instrument
type Signal int8

const (
	// SignalNone leaves the position unchanged
	SignalNone Signal = 0
	// SignalBuy is a golden cross
	SignalBuy Signal = 1
	// SignalSell is a death cross
	SignalSell Signal = -1
)

// String returns the signal name
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	}
	return "none"
}

// MarshalText encodes the signal by name
func (s Signal) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a signal name
func (s *Signal) UnmarshalText(text []byte) error {
	switch string(text) {
	case "buy":
		*s = SignalBuy
	case "sell":
		*s = SignalSell
	case "none", "":
		*s = SignalNone
	default:
		return fmt.Errorf("unknown signal %q", text)
	}
	return nil
}

// MACDSeries holds the MACD triple aligned to an instrument's observed dates
type MACDSeries struct {
	Diff []float64 `json:"diff" msgpack:"diff"`
	DEA  []float64 `json:"dea" msgpack:"dea"`
	Hist []float64 `json:"macd" msgpack:"macd"`
}

// MomentumSeries holds N-period return and trend score aligned to observed dates
type MomentumSeries struct {
	Return []float64 `json:"momentum_return" msgpack:"momentum_return"`
	Score  []float64 `json:"momentum_score" msgpack:"momentum_score"`
}

// IndicatorSeries is the per-instrument indicator output of one run.
// Exactly one of MACD or Momentum is set; an empty series means the indicator
// is unavailable for the instrument.
type IndicatorSeries struct {
	Instrument string          `json:"instrument" msgpack:"instrument"`
	Dates      []time.Time     `json:"dates" msgpack:"dates"`
	MACD       *MACDSeries     `json:"macd,omitempty" msgpack:"macd,omitempty"`
	Momentum   *MomentumSeries `json:"momentum,omitempty" msgpack:"momentum,omitempty"`
}

// Empty reports whether the indicator is unavailable
func (s IndicatorSeries) Empty() bool {
	return len(s.Dates) == 0
}

// IndexOf returns the position of date in the series, or -1
func (s IndicatorSeries) IndexOf(date time.Time) int {
	for i, d := range s.Dates {
		if d.Equal(date) {
			return i
		}
	}
	return -1
}

// SignalSeries is the per-date signal output of a strategy.
// MACD mode fills Actions; momentum mode fills Winners (already lagged so
// Winners[i] is the instrument held on Dates[i]).
type SignalSeries struct {
	Dates   []time.Time         `json:"dates" msgpack:"dates"`
	Rows    []int               `json:"-" msgpack:"rows"`
	Actions map[string][]Signal `json:"actions,omitempty" msgpack:"actions,omitempty"`
	Winners []string            `json:"winners,omitempty" msgpack:"winners,omitempty"`
}

// Len returns the number of dates
func (s SignalSeries) Len() int {
	return len(s.Dates)
}

// ActionsAt returns every instrument's signal on row i
func (s SignalSeries) ActionsAt(i int) map[string]Signal {
	out := make(map[string]Signal, len(s.Actions))
	for id, actions := range s.Actions {
		if i < len(actions) {
			out[id] = actions[i]
		}
	}
	return out
}
