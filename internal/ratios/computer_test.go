package ratios

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ratiofetcher/internal/model"
)

func amt(v float64) *float64 { return &v }

func line(sj model.Statement, id, name string, cur, prior *float64) model.StatementLine {
	return model.StatementLine{Statement: sj, AccountID: id, AccountName: name, Current: cur, Prior: prior}
}

func sampleStatements() *model.Statements {
	return &model.Statements{
		Code:  "005930",
		Basis: model.BasisConsolidated,
		Sets: []model.StatementSet{
			{Period: "20231231", Lines: []model.StatementLine{
				line(model.StatementBalance, "ifrs-full_Assets", "자산총계", amt(1000), amt(800)),
				line(model.StatementBalance, "ifrs-full_CurrentAssets", "유동자산", amt(600), nil),
				line(model.StatementBalance, "ifrs-full_Liabilities", "부채총계", amt(400), nil),
				line(model.StatementBalance, "ifrs-full_CurrentLiabilities", "유동부채", amt(300), nil),
				line(model.StatementBalance, "ifrs-full_Equity", "자본총계", amt(600), amt(400)),
				line(model.StatementBalance, "ifrs-full_Inventories", "재고자산", amt(150), nil),
				line(model.StatementBalance, "ifrs-full_ShorttermBorrowings", "단기차입금", amt(100), nil),
				line(model.StatementBalance, "ifrs-full_LongtermBorrowings", "장기차입금", amt(100), nil),
				line(model.StatementIncome, "ifrs-full_Revenue", "매출액", amt(2000), amt(1600)),
				line(model.StatementIncome, "-표준계정코드 미사용-", "영업이익(손실)", amt(200), amt(250)),
				line(model.StatementIncome, "ifrs-full_ProfitLoss", "당기순이익", amt(100), nil),
				line(model.StatementIncome, "ifrs-full_FinanceCosts", "금융비용", amt(0), nil),
				line(model.StatementIncome, "ifrs-full_DepreciationAndAmortisationExpense", "감가상각비", amt(50), nil),
				line(model.StatementCashFlow, "ifrs-full_CashFlowsFromUsedInOperatingActivities", "영업활동현금흐름", amt(300), nil),
				line(model.StatementCashFlow, "ifrs-full_PurchaseOfPropertyPlantAndEquipment", "유형자산의 취득", amt(-120), nil),
				line(model.StatementCashFlow, "ifrs-full_InterestPaidClassifiedAsOperatingActivities", "이자의 지급", amt(-25), nil),
			}},
			{Period: "20221231", Lines: []model.StatementLine{
				line(model.StatementBalance, "ifrs-full_Assets", "자산총계", amt(800), nil),
			}},
		},
	}
}

func TestCompute(t *testing.T) {
	record := New().Compute(sampleStatements())
	require.Len(t, record.Periods, 2)
	assert.Equal(t, "20221231", record.Periods[0].Date)

	v := record.Periods[1].Values
	assert.Len(t, v, len(model.Fields))
	for _, f := range model.Fields {
		assert.Contains(t, v, f)
	}

	assert.InDelta(t, 400.0/600, *v["debt_ratio"], 1e-9)
	assert.InDelta(t, 0.6, *v["equity_ratio"], 1e-9)
	assert.InDelta(t, 2.0, *v["current_ratio"], 1e-9)
	assert.InDelta(t, 1.5, *v["quick_ratio"], 1e-9)
	assert.InDelta(t, 0.1, *v["operating_margin"], 1e-9)
	// average equity (600+400)/2
	assert.InDelta(t, 0.2, *v["roe"], 1e-9)
	assert.InDelta(t, 100.0/900, *v["roa"], 1e-9)
	assert.InDelta(t, 0.25, *v["sales_growth_rate"], 1e-9)
	assert.InDelta(t, -0.2, *v["operating_income_growth_rate"], 1e-9)
	// zero finance costs fall back to EBITDA over interest paid
	assert.InDelta(t, 250.0/25, *v["interest_coverage_ratio"], 1e-9)
	// borrowings are summed
	assert.InDelta(t, 1.5, *v["cfo_to_total_debt"], 1e-9)
	assert.InDelta(t, 180.0, *v["free_cash_flow"], 1e-9)
	assert.Nil(t, v["accounts_receivable_turnover"])

	sparse := record.Periods[0].Values
	assert.Nil(t, sparse["debt_ratio"])
	// no prior amount: growth is undefined
	assert.Nil(t, sparse["total_asset_growth_rate"])
}

func TestCompute_Empty(t *testing.T) {
	assert.True(t, New().Compute(nil).Empty())
	assert.True(t, New().Compute(&model.Statements{}).Empty())
}
