package quality

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"ratiofetcher/internal/model"
)

// recordWith builds a single-period record over the full schema with the
// first filled fields set.
func recordWith(filled int) model.RatioRecord {
	values := make(map[string]*float64, len(model.Fields))
	for i, f := range model.Fields {
		if i < filled {
			values[f] = model.Float(float64(i) + 0.5)
		} else {
			values[f] = nil
		}
	}
	return model.RatioRecord{Periods: []model.Period{{Date: "20231231", Values: values}}}
}

func TestEvaluate_RejectsEmpty(t *testing.T) {
	assert.False(t, Accept(model.RatioRecord{}, 1, 0))
	assert.False(t, Accept(recordWith(0), 1, 0))

	v := Evaluate(recordWith(0), 1, 0)
	assert.Equal(t, ReasonEmpty, v.Reason)
}

// spread builds one period per count. Each period fills the next count
// schema fields, so periods never share a field; the rest stay null.
func spread(counts ...int) model.RatioRecord {
	var r model.RatioRecord
	next := 0
	for i, n := range counts {
		values := make(map[string]*float64, len(model.Fields))
		for j, f := range model.Fields {
			values[f] = nil
			if j >= next && j < next+n {
				values[f] = model.Float(float64(j) + 0.5)
			}
		}
		next += n
		r.Periods = append(r.Periods, model.Period{Date: fmt.Sprintf("%d1231", 2021+i), Values: values})
	}
	return r
}

func TestEvaluate_Thresholds(t *testing.T) {
	total := len(model.Fields)

	tests := []struct {
		name   string
		record model.RatioRecord
		limit  float64
		min    int
		want   bool
		reason Reason
	}{
		{"full record", spread(total), 0.6, 5, true, ReasonNone},
		{"just within limit", spread(8, 8, 3), 0.6, 5, true, ReasonNone},
		{"nan heavy", spread(7, 7, 5), 0.6, 5, false, ReasonNaNHeavy},
		{"too sparse", spread(4), 0.9, 5, false, ReasonTooSparse},
		{"zero limit needs every numeric field", spread(total-1, 1), 0, 1, false, ReasonNaNHeavy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Evaluate(tt.record, tt.limit, tt.min)
			assert.Equal(t, tt.want, v.Accepted)
			assert.Equal(t, tt.reason, v.Reason)
		})
	}
}

func TestEvaluate_IgnoresFieldsNullInEveryPeriod(t *testing.T) {
	v := DefaultConfig().Check(recordWith(7))

	assert.True(t, v.Accepted)
	assert.Equal(t, 7, v.Filled)
	assert.Equal(t, 7, v.Fields)
	assert.Zero(t, v.NaNRatio)
}

func TestEvaluate_CountsFieldsAcrossPeriods(t *testing.T) {
	v := Evaluate(spread(7, 7, 5), 0.6, 5)

	assert.Equal(t, 7, v.Filled)
	assert.Equal(t, len(model.Fields), v.Fields)
	assert.InDelta(t, 12.0/19, v.NaNRatio, 1e-9)
}

func TestEvaluate_UsesBestPeriod(t *testing.T) {
	sparse := recordWith(1).Periods[0]
	sparse.Date = "20241231"
	full := recordWith(len(model.Fields)).Periods[0]

	r := model.RatioRecord{Periods: []model.Period{full, sparse}}
	assert.True(t, Accept(r, 0.6, 5))
}

func TestAccept_MonotonicInLimit(t *testing.T) {
	limits := []float64{0, 0.1, 0.25, 0.4, 0.6, 0.8, 1}
	for filled := 0; filled <= len(model.Fields); filled++ {
		r := recordWith(filled)
		for i := range limits {
			for j := i + 1; j < len(limits); j++ {
				if Accept(r, limits[i], 3) {
					assert.True(t, Accept(r, limits[j], 3),
						fmt.Sprintf("filled=%d accepted at %.2f but not at %.2f", filled, limits[i], limits[j]))
				}
			}
		}
	}
}

func TestConfig_Disabled(t *testing.T) {
	cfg := Config{Enabled: false, NaNRatioLimit: 0, MinFilled: 99}
	assert.True(t, cfg.Check(recordWith(1)).Accepted)
	assert.False(t, cfg.Check(recordWith(0)).Accepted)
}
