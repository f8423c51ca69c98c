package ratios

import (
	"strings"

	"ratiofetcher/internal/model"
)

// account describes how one financial concept is found among filed lines:
// by IFRS/DART taxonomy id first, then by Korean account name.
type account struct {
	ids        []string
	names      []string
	statements []model.Statement
	// sum adds every matching line instead of taking the first
	sum bool
}

var (
	bsOnly = []model.Statement{model.StatementBalance}
	isOnly = []model.Statement{model.StatementIncome, model.StatementComprehensive}
	cfOnly = []model.Statement{model.StatementCashFlow}
)

var (
	totalAssets = account{
		ids: []string{"ifrs-full_Assets"}, names: []string{"자산총계"}, statements: bsOnly,
	}
	currentAssets = account{
		ids: []string{"ifrs-full_CurrentAssets"}, names: []string{"유동자산"}, statements: bsOnly,
	}
	totalLiabilities = account{
		ids: []string{"ifrs-full_Liabilities"}, names: []string{"부채총계"}, statements: bsOnly,
	}
	currentLiabilities = account{
		ids: []string{"ifrs-full_CurrentLiabilities"}, names: []string{"유동부채"}, statements: bsOnly,
	}
	equity = account{
		ids: []string{"ifrs-full_Equity"}, names: []string{"자본총계"}, statements: bsOnly,
	}
	inventories = account{
		ids: []string{"ifrs-full_Inventories"}, names: []string{"재고자산"}, statements: bsOnly,
	}
	receivables = account{
		ids:        []string{"ifrs-full_TradeAndOtherCurrentReceivables", "dart_ShortTermTradeReceivable"},
		names:      []string{"매출채권", "매출채권및기타채권", "매출채권 및 기타채권"},
		statements: bsOnly,
	}
	borrowings = account{
		ids: []string{
			"ifrs-full_ShorttermBorrowings", "ifrs-full_LongtermBorrowings",
			"ifrs-full_CurrentPortionOfLongtermBorrowings", "dart_BondsIssued",
		},
		names:      []string{"단기차입금", "장기차입금", "유동성장기부채", "사채"},
		statements: bsOnly,
		sum:        true,
	}
	revenue = account{
		ids:        []string{"ifrs-full_Revenue"},
		names:      []string{"매출액", "수익(매출액)", "영업수익"},
		statements: isOnly,
	}
	operatingIncome = account{
		ids:        []string{"dart_OperatingIncomeLoss"},
		names:      []string{"영업이익", "영업이익(손실)"},
		statements: isOnly,
	}
	netIncome = account{
		ids:        []string{"ifrs-full_ProfitLoss"},
		names:      []string{"당기순이익", "당기순이익(손실)", "분기순이익", "반기순이익"},
		statements: isOnly,
	}
	financeCosts = account{
		ids: []string{"ifrs-full_FinanceCosts"}, names: []string{"금융비용", "금융원가"}, statements: isOnly,
	}
	depreciation = account{
		ids:        []string{"ifrs-full_DepreciationAndAmortisationExpense", "ifrs-full_AdjustmentsForDepreciationAndAmortisationExpense"},
		names:      []string{"감가상각비", "감가상각비와 상각비"},
		statements: []model.Statement{model.StatementIncome, model.StatementCashFlow},
	}
	operatingCashFlow = account{
		ids:        []string{"ifrs-full_CashFlowsFromUsedInOperatingActivities"},
		names:      []string{"영업활동현금흐름", "영업활동으로 인한 현금흐름"},
		statements: cfOnly,
	}
	capitalExpenditure = account{
		ids:        []string{"ifrs-full_PurchaseOfPropertyPlantAndEquipment"},
		names:      []string{"유형자산의 취득", "유형자산의취득"},
		statements: cfOnly,
	}
	interestPaid = account{
		ids:        []string{"ifrs-full_InterestPaidClassifiedAsOperatingActivities"},
		names:      []string{"이자의 지급", "이자지급"},
		statements: cfOnly,
	}
)

// amounts are the current and prior period values of one concept
type amounts struct {
	cur, prior *float64
}

func (a account) find(lines []model.StatementLine) amounts {
	if got, ok := a.match(lines, func(l model.StatementLine) bool { return contains(a.ids, l.AccountID) }); ok {
		return got
	}
	got, _ := a.match(lines, func(l model.StatementLine) bool {
		return contains(a.names, strings.Join(strings.Fields(l.AccountName), " "))
	})
	return got
}

func (a account) match(lines []model.StatementLine, pred func(model.StatementLine) bool) (amounts, bool) {
	var out amounts
	found := false
	for _, l := range lines {
		if !containsStatement(a.statements, l.Statement) || !pred(l) {
			continue
		}
		if !a.sum {
			return amounts{cur: l.Current, prior: l.Prior}, true
		}
		out.cur = add(out.cur, l.Current)
		out.prior = add(out.prior, l.Prior)
		found = true
	}
	return out, found
}

func add(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return model.Float(*a + *b)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsStatement(list []model.Statement, s model.Statement) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
