// Package quality decides whether a ratio record is complete enough to accept.
// The same gate is applied to cached and freshly fetched records.
package quality

import "ratiofetcher/internal/model"

// Reason explains a rejection
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonEmpty     Reason = "empty"
	ReasonNaNHeavy  Reason = "nan_heavy"
	ReasonTooSparse Reason = "too_sparse"
)

// Config holds the gate thresholds
type Config struct {
	// Enabled turns the thresholds on; when false only empty records are rejected.
	Enabled       bool
	NaNRatioLimit float64
	MinFilled     int
}

// DefaultConfig mirrors the thresholds the batch runner ships with
func DefaultConfig() Config {
	return Config{Enabled: true, NaNRatioLimit: 0.60, MinFilled: 5}
}

// Verdict is the detailed result of evaluating a record
type Verdict struct {
	Accepted bool
	NaNRatio float64
	Filled   int
	Fields   int
	Reason   Reason
}

// Evaluate scores the best-filled period of the record. The null ratio is
// measured over the fields that carry a value in at least one period, so
// fields the filings never support do not count against the record.
func Evaluate(record model.RatioRecord, nanRatioLimit float64, minFilled int) Verdict {
	numeric := make(map[string]struct{})
	best := 0
	for _, p := range record.Periods {
		filled := 0
		for f, val := range p.Values {
			if val != nil {
				numeric[f] = struct{}{}
				filled++
			}
		}
		best = max(best, filled)
	}
	if len(numeric) == 0 {
		return Verdict{NaNRatio: 1, Reason: ReasonEmpty}
	}

	v := Verdict{
		Filled: best,
		Fields: len(numeric),
	}
	v.NaNRatio = 1 - float64(v.Filled)/float64(v.Fields)

	switch {
	case v.NaNRatio > nanRatioLimit:
		v.Reason = ReasonNaNHeavy
	case v.Filled < minFilled:
		v.Reason = ReasonTooSparse
	default:
		v.Accepted = true
	}
	return v
}

// Accept reports whether record passes the thresholds
func Accept(record model.RatioRecord, nanRatioLimit float64, minFilled int) bool {
	return Evaluate(record, nanRatioLimit, minFilled).Accepted
}

// Check applies cfg, honouring the Enabled switch
func (c Config) Check(record model.RatioRecord) Verdict {
	if !c.Enabled {
		return Evaluate(record, 1, 0)
	}
	return Evaluate(record, c.NaNRatioLimit, c.MinFilled)
}
