package model

// SchemaVersion versions the output field set. Bump it whenever Fields or the
// meaning of a field changes.
const SchemaVersion = "1.2.0"

// Fields is the fixed output schema, in output column order
var Fields = []string{
	"debt_ratio", "equity_ratio", "debt_dependency_ratio",
	"current_ratio", "quick_ratio", "interest_coverage_ratio",
	"ebitda_to_total_debt", "cfo_to_total_debt", "free_cash_flow",
	"operating_margin", "roa", "roe", "net_profit_margin",
	"total_asset_turnover", "accounts_receivable_turnover", "inventory_turnover",
	"sales_growth_rate", "operating_income_growth_rate", "total_asset_growth_rate",
}

// PercentFields are fractions rendered as percentages by FormatPercent
var PercentFields = []string{
	"debt_ratio", "equity_ratio", "debt_dependency_ratio",
	"current_ratio", "quick_ratio",
	"operating_margin", "roa", "roe", "net_profit_margin",
	"sales_growth_rate", "operating_income_growth_rate", "total_asset_growth_rate",
}

// MultipleFields are "times" ratios, rounded but not scaled
var MultipleFields = []string{
	"interest_coverage_ratio", "ebitda_to_total_debt", "cfo_to_total_debt",
	"total_asset_turnover", "accounts_receivable_turnover", "inventory_turnover",
}

// PriorityFields decide which period counts as the latest usable one
var PriorityFields = []string{
	"current_ratio", "quick_ratio", "debt_ratio", "equity_ratio",
	"operating_margin", "roa", "roe", "net_profit_margin",
}

var fieldSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Fields))
	for _, f := range Fields {
		m[f] = struct{}{}
	}
	return m
}()

// IsField reports whether name belongs to the output schema
func IsField(name string) bool {
	_, ok := fieldSet[name]
	return ok
}

func contains(list []string, name string) bool {
	for _, f := range list {
		if f == name {
			return true
		}
	}
	return false
}

// IsPercentField reports whether name is scaled by FormatPercent
func IsPercentField(name string) bool { return contains(PercentFields, name) }

// IsMultipleField reports whether name is a "times" ratio
func IsMultipleField(name string) bool { return contains(MultipleFields, name) }
