// Package domain provides core domain models and types.
package domain

import "time"

// Instrument is a tradable member of the rotation pool
type Instrument struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// InstrumentIDs returns the identifiers of a pool in pool order
func InstrumentIDs(pool []Instrument) []string {
	ids := make([]string, len(pool))
	for i, inst := range pool {
		ids[i] = inst.ID
	}
	return ids
}

// DateLayout is the canonical YYYY-MM-DD date layout
const DateLayout = "2006-01-02"

// CompactDateLayout is the YYYYMMDD layout used by strategy configs
const CompactDateLayout = "20060102"

// NormalizeDate truncates a timestamp to UTC midnight
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or YYYYMMDD
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(CompactDateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}
