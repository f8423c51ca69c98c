package model

import (
	"math"
	"sort"
)

// Period holds the ratio values for one reporting date (YYYYMMDD).
// A nil value means the field could not be computed.
type Period struct {
	Date   string              `json:"date"`
	Values map[string]*float64 `json:"values"`
}

// Filled counts the non-null values of the period
func (p Period) Filled() int {
	n := 0
	for _, v := range p.Values {
		if v != nil {
			n++
		}
	}
	return n
}

// HasAny reports whether at least one of names carries a value
func (p Period) HasAny(names []string) bool {
	for _, name := range names {
		if v, ok := p.Values[name]; ok && v != nil {
			return true
		}
	}
	return false
}

// RatioRecord maps reporting dates to flat ratio values, ordered by date ascending
type RatioRecord struct {
	Periods []Period `json:"periods"`
}

// Float returns a pointer to v, or nil when v is NaN or infinite
func Float(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Sort orders periods by date ascending
func (r *RatioRecord) Sort() {
	sort.SliceStable(r.Periods, func(i, j int) bool {
		return r.Periods[i].Date < r.Periods[j].Date
	})
}

// Empty reports whether the record has no computable value at all
func (r RatioRecord) Empty() bool {
	for _, p := range r.Periods {
		if p.Filled() > 0 {
			return false
		}
	}
	return true
}

// FieldNames returns the union of field names, schema fields first in schema order
func (r RatioRecord) FieldNames() []string {
	seen := make(map[string]struct{})
	for _, p := range r.Periods {
		for name := range p.Values {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for _, f := range Fields {
		if _, ok := seen[f]; ok {
			names = append(names, f)
			delete(seen, f)
		}
	}
	var extra []string
	for name := range seen {
		extra = append(extra, name)
	}
	sort.Strings(extra)
	return append(names, extra...)
}

// Latest returns the most recent period carrying a priority field, falling
// back to the most recent period. ok is false for a record without periods.
func (r RatioRecord) Latest() (Period, bool) {
	if len(r.Periods) == 0 {
		return Period{}, false
	}
	sorted := append([]Period(nil), r.Periods...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })
	for _, p := range sorted {
		if p.HasAny(PriorityFields) {
			return p, true
		}
	}
	return sorted[0], true
}
