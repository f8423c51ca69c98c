package resolver

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// corporateTokens are legal-form markers dropped before name matching.
// Entries are compared after NFKC and case folding.
var corporateTokens = map[string]struct{}{
	"주식회사": {}, "(주)": {}, "유한회사": {}, "(유)": {},
	"inc": {}, "inc.": {}, "incorporated": {},
	"corp": {}, "corp.": {}, "corporation": {},
	"co": {}, "co.": {}, "co.,": {}, "co.,ltd": {}, "co.,ltd.": {},
	"ltd": {}, "ltd.": {}, "limited": {},
	"plc": {}, "llc": {}, "l.l.c.": {},
}

// attachedMarkers are legal-form markers that are commonly glued to the name,
// as in "(주)카카오".
var attachedMarkers = []string{"(주)", "(유)"}

// NormalizeName standardizes a company name for matching by:
//  1. Unicode NFKC normalization (folds "㈜" into "(주)" and full-width forms)
//  2. Case folding
//  3. Removing corporate-suffix tokens (주식회사, (주), Inc, Co., Ltd, ...)
//  4. Collapsing whitespace
func NormalizeName(name string) string {
	s := cases.Fold().String(norm.NFKC.String(name))
	for _, m := range attachedMarkers {
		s = strings.ReplaceAll(s, m, " "+m+" ")
	}

	fields := strings.Fields(s)
	var kept []string
	for _, f := range fields {
		if _, drop := corporateTokens[strings.TrimSuffix(f, ",")]; drop {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		// a name made only of legal-form tokens still needs a key
		return strings.Join(fields, " ")
	}
	return strings.Join(kept, " ")
}

// CodeWidth is the canonical listing-code width
const CodeWidth = 6

// NormalizeCode trims a listing code and zero-pads short numeric codes to
// CodeWidth. Non-numeric codes are returned trimmed.
func NormalizeCode(code string) string {
	c := strings.TrimSpace(norm.NFKC.String(code))
	if c == "" || !isDigits(c) || len(c) >= CodeWidth {
		return c
	}
	return strings.Repeat("0", CodeWidth-len(c)) + c
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
