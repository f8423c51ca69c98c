// Package ratios computes the financial ratio schema from raw statements.
// Averages use the prior-period amounts of the same filing and fall back to
// the current amount when the prior one is missing; growth rates require the
// prior amount.
package ratios

import (
	"math"

	"ratiofetcher/internal/model"
)

// Computer implements fetcher.Computer
type Computer struct{}

// New creates a Computer
func New() *Computer {
	return &Computer{}
}

// Compute returns one period per statement set, every schema field present
func (c *Computer) Compute(st *model.Statements) model.RatioRecord {
	var record model.RatioRecord
	if st == nil {
		return record
	}
	for _, set := range st.Sets {
		record.Periods = append(record.Periods, model.Period{
			Date:   set.Period,
			Values: computePeriod(set.Lines),
		})
	}
	record.Sort()
	return record
}

func computePeriod(lines []model.StatementLine) map[string]*float64 {
	ta := totalAssets.find(lines)
	ca := currentAssets.find(lines)
	tl := totalLiabilities.find(lines)
	cl := currentLiabilities.find(lines)
	eq := equity.find(lines)
	inv := inventories.find(lines)
	ar := receivables.find(lines)
	rev := revenue.find(lines)
	oi := operatingIncome.find(lines)
	ni := netIncome.find(lines)
	fc := financeCosts.find(lines)
	da := depreciation.find(lines)
	cfo := operatingCashFlow.find(lines)
	capex := capitalExpenditure.find(lines)
	interest := interestPaid.find(lines)

	debt := borrowings.find(lines).cur
	if debt == nil {
		debt = tl.cur
	}

	var quick *float64
	if ca.cur != nil {
		quick = model.Float(*ca.cur - value(inv.cur))
	}

	var ebitda *float64
	if oi.cur != nil && da.cur != nil {
		ebitda = model.Float(*oi.cur + math.Abs(*da.cur))
	}

	icr := div(oi.cur, fc.cur)
	if icr == nil {
		icr = div(ebitda, abs(interest.cur))
	}

	var fcf *float64
	switch {
	case cfo.cur != nil && capex.cur != nil:
		fcf = model.Float(*cfo.cur - math.Abs(*capex.cur))
	case cfo.cur != nil:
		fcf = cfo.cur
	}

	return map[string]*float64{
		"debt_ratio":                   div(tl.cur, eq.cur),
		"equity_ratio":                 div(eq.cur, ta.cur),
		"debt_dependency_ratio":        div(tl.cur, ta.cur),
		"current_ratio":                div(ca.cur, cl.cur),
		"quick_ratio":                  div(quick, cl.cur),
		"interest_coverage_ratio":      icr,
		"ebitda_to_total_debt":         div(ebitda, debt),
		"cfo_to_total_debt":            div(cfo.cur, debt),
		"free_cash_flow":               fcf,
		"operating_margin":             div(oi.cur, rev.cur),
		"roa":                          div(ni.cur, average(ta)),
		"roe":                          div(ni.cur, average(eq)),
		"net_profit_margin":            div(ni.cur, rev.cur),
		"total_asset_turnover":         div(rev.cur, average(ta)),
		"accounts_receivable_turnover": div(rev.cur, average(ar)),
		"inventory_turnover":           div(rev.cur, average(inv)),
		"sales_growth_rate":            growth(rev),
		"operating_income_growth_rate": growth(oi),
		"total_asset_growth_rate":      growth(ta),
	}
}

func div(a, b *float64) *float64 {
	if a == nil || b == nil || *b == 0 {
		return nil
	}
	return model.Float(*a / *b)
}

func average(a amounts) *float64 {
	if a.cur == nil {
		return nil
	}
	if a.prior == nil {
		return a.cur
	}
	return model.Float((*a.cur + *a.prior) / 2)
}

func growth(a amounts) *float64 {
	if a.cur == nil || a.prior == nil || *a.prior == 0 {
		return nil
	}
	return model.Float((*a.cur - *a.prior) / math.Abs(*a.prior))
}

func abs(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return model.Float(math.Abs(*v))
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
