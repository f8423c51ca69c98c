package model

// Statement names the financial statement an account line was filed under
type Statement string

const (
	StatementBalance       Statement = "BS"
	StatementIncome        Statement = "IS"
	StatementComprehensive Statement = "CIS"
	StatementCashFlow      Statement = "CF"
	StatementEquity        Statement = "SCE"
)

// StatementLine is a single account line of a filed statement. Amounts are
// nil when the filing leaves them blank.
type StatementLine struct {
	Statement   Statement `json:"sj_div"`
	AccountID   string    `json:"account_id"`
	AccountName string    `json:"account_nm"`
	Current     *float64  `json:"thstrm_amount,omitempty"`
	Prior       *float64  `json:"frmtrm_amount,omitempty"`
}

// StatementSet is everything filed for one reporting period
type StatementSet struct {
	// Period is the period end date (YYYYMMDD).
	Period string          `json:"period"`
	Lines  []StatementLine `json:"lines"`
}

// Statements are the raw tables returned by a statement extractor
type Statements struct {
	Code  string         `json:"code"`
	Basis Basis          `json:"basis"`
	Sets  []StatementSet `json:"sets"`
}

// Empty reports whether no period carries any line
func (s *Statements) Empty() bool {
	if s == nil {
		return true
	}
	for _, set := range s.Sets {
		if len(set.Lines) > 0 {
			return false
		}
	}
	return true
}
