package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams() FetchParameters {
	return FetchParameters{
		DateFrom:     "20210101",
		ReportPeriod: PeriodAnnual,
		Basis:        BasisStandalone,
		OutputFormat: FormatRaw,
	}
}

func TestNewCacheKey_Deterministic(t *testing.T) {
	a := NewCacheKey("005930", defaultParams())
	b := NewCacheKey("005930", defaultParams())
	assert.Equal(t, a, b)
	assert.Len(t, a.Hash, 64)
	assert.Equal(t, "005930", a.Code)
}

func TestNewCacheKey_TrimsCode(t *testing.T) {
	k := NewCacheKey(" 005930\t", defaultParams())
	assert.Equal(t, NewCacheKey("005930", defaultParams()), k)
	assert.Equal(t, "005930", k.Code)
}

func TestNewCacheKey_EveryFieldChangesKey(t *testing.T) {
	base := NewCacheKey("005930", defaultParams())

	tests := []struct {
		name   string
		mutate func(p *FetchParameters)
	}{
		{"date_from", func(p *FetchParameters) { p.DateFrom = "20200101" }},
		{"report_period", func(p *FetchParameters) { p.ReportPeriod = PeriodQuarter }},
		{"basis", func(p *FetchParameters) { p.Basis = BasisConsolidated }},
		{"latest_only", func(p *FetchParameters) { p.LatestOnly = true }},
		{"output_format", func(p *FetchParameters) { p.OutputFormat = FormatPercent }},
		{"fields", func(p *FetchParameters) { p.Fields = []string{"roe"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultParams()
			tt.mutate(&p)
			assert.NotEqual(t, base.Hash, NewCacheKey("005930", p).Hash)
		})
	}

	assert.NotEqual(t, base.Hash, NewCacheKey("000660", defaultParams()).Hash)
}

func TestNewCacheKey_ExplicitFullSchemaMatchesDefault(t *testing.T) {
	p := defaultParams()
	p.Fields = append([]string(nil), Fields...)
	assert.Equal(t, NewCacheKey("005930", defaultParams()), NewCacheKey("005930", p))
}

func TestFetchParameters_Validate(t *testing.T) {
	require.NoError(t, defaultParams().Validate())

	bad := defaultParams()
	bad.DateFrom = "2021-01-01"
	assert.Error(t, bad.Validate())

	bad = defaultParams()
	bad.Basis = "group"
	assert.Error(t, bad.Validate())

	bad = defaultParams()
	bad.Fields = []string{"ebitda_margin_v2"}
	assert.Error(t, bad.Validate())
}

func TestParseResolveMode(t *testing.T) {
	m, err := ParseResolveMode("")
	require.NoError(t, err)
	assert.Equal(t, ResolveAuto, m)

	m, err = ParseResolveMode("Name")
	require.NoError(t, err)
	assert.Equal(t, ResolveByName, m)

	_, err = ParseResolveMode("isin")
	assert.Error(t, err)
}

func TestRatioRecord_Latest(t *testing.T) {
	r := RatioRecord{Periods: []Period{
		{Date: "20221231", Values: map[string]*float64{"roe": Float(0.1)}},
		{Date: "20231231", Values: map[string]*float64{"roe": Float(0.2)}},
		{Date: "20241231", Values: map[string]*float64{"roe": nil, "free_cash_flow": Float(10)}},
	}}

	p, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "20231231", p.Date)

	_, ok = RatioRecord{}.Latest()
	assert.False(t, ok)
}

func TestRatioRecord_Empty(t *testing.T) {
	assert.True(t, RatioRecord{}.Empty())
	assert.True(t, RatioRecord{Periods: []Period{{Date: "20231231", Values: map[string]*float64{"roe": nil}}}}.Empty())
	assert.False(t, RatioRecord{Periods: []Period{{Date: "20231231", Values: map[string]*float64{"roe": Float(1)}}}}.Empty())
}
