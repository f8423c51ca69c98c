// Package dart talks to the OpenDART filings service: it extracts full
// financial statements for a company and downloads the corp code directory.
package dart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"resty.dev/v3"

	"ratiofetcher/internal/fetcher"
	"ratiofetcher/internal/model"
	"ratiofetcher/internal/ratelimit"
)

// DefaultBaseURL is the production API root
const DefaultBaseURL = "https://opendart.fss.or.kr/api"

// Upstream status codes
const (
	statusOK          = "000"
	statusInvalidKey  = "010"
	statusDeniedKey   = "011"
	statusDeniedIP    = "012"
	statusNoData      = "013"
	statusTooMany     = "020"
	statusBadArgument = "100"
	statusMaintenance = "800"
	statusUndefined   = "900"
)

// report codes, keyed by the month the reported period ends in
const (
	reportQ1     = "11013"
	reportHalf   = "11012"
	reportQ3     = "11014"
	reportAnnual = "11011"
)

var reportPeriodEnd = map[string]string{
	reportQ1:     "0331",
	reportHalf:   "0630",
	reportQ3:     "0930",
	reportAnnual: "1231",
}

// CorpLookup maps a listing code to the filer identifier used upstream
type CorpLookup interface {
	CorpCode(stockCode string) (string, bool)
}

// StatementResponse is the fnlttSinglAcntAll response body
type StatementResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	List    []AccountRow `json:"list"`
}

// AccountRow is one account line as returned upstream. Amounts are strings
// with thousands separators; blank or "-" means not reported.
type AccountRow struct {
	StatementDiv string `json:"sj_div"`
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_nm"`
	Current      string `json:"thstrm_amount"`
	Prior        string `json:"frmtrm_amount"`
}

// Options configures a Client
type Options struct {
	APIKey      string
	BaseURL     string
	HTTPRetries int
	Timeout     time.Duration
	Limiter     *ratelimit.Limiter
	// Now is used to find the last business year to request. Default: time.Now.
	Now func() time.Time
}

// Client is the statement extractor backed by OpenDART
type Client struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	corps   CorpLookup
	now     func() time.Time
}

// NewClient creates a Client. corps may be nil, in which case codes are sent
// upstream as filer identifiers unchanged.
func NewClient(opts Options, corps CorpLookup) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		apiKey: opts.APIKey,
		client: fetcher.NewHTTPClient(opts.BaseURL, fetcher.ClientOptions{
			RetryCount: opts.HTTPRetries,
			Timeout:    opts.Timeout,
		}),
		limiter: opts.Limiter,
		corps:   corps,
		now:     opts.Now,
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.client.Close()
}

// Extract implements fetcher.Extractor. It collects every period from
// dateFrom through the current year. When no period was filed on basis it
// returns a basis_not_found error.
func (c *Client) Extract(ctx context.Context, code, dateFrom string, period model.ReportPeriod, basis model.Basis) (*model.Statements, error) {
	corpCode := code
	if c.corps != nil {
		cc, ok := c.corps.CorpCode(code)
		if !ok {
			return nil, fetcher.NewNotFoundError(fmt.Sprintf("no filer registered for %s", code))
		}
		corpCode = cc
	}

	from, err := time.Parse(model.DateLayout, dateFrom)
	if err != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("invalid date_from %q", dateFrom))
	}

	st := &model.Statements{Code: code, Basis: basis}
	for year := from.Year(); year <= c.now().Year(); year++ {
		for _, reprt := range reportCodes(period) {
			end := strconv.Itoa(year) + reportPeriodEnd[reprt]
			if end < dateFrom {
				continue
			}
			lines, err := c.fetchStatement(ctx, corpCode, year, reprt, basis)
			if err != nil {
				return nil, err
			}
			if len(lines) > 0 {
				st.Sets = append(st.Sets, model.StatementSet{Period: end, Lines: lines})
			}
		}
	}

	if st.Empty() {
		return nil, fetcher.NewBasisNotFoundError(string(basis))
	}
	sort.Slice(st.Sets, func(i, j int) bool { return st.Sets[i].Period < st.Sets[j].Period })
	return st, nil
}

// fetchStatement requests one business year and report. A no-data status
// yields nil lines without error.
func (c *Client) fetchStatement(ctx context.Context, corpCode string, year int, reprt string, basis model.Basis) ([]model.StatementLine, error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIDart); err != nil {
		return nil, fetcher.NewTransientError(err, 0)
	}

	var result StatementResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"crtfc_key":  c.apiKey,
			"corp_code":  corpCode,
			"bsns_year":  strconv.Itoa(year),
			"reprt_code": reprt,
			"fs_div":     fsDiv(basis),
		}).
		SetResult(&result).
		Get("/fnlttSinglAcntAll.json")
	if err != nil {
		return nil, fetcher.NewTransientError(err, 0)
	}
	if !resp.IsSuccess() {
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	switch result.Status {
	case statusOK:
	case statusNoData:
		return nil, nil
	default:
		return nil, classifyStatus(result.Status, result.Message)
	}

	zap.L().Debug("statement received",
		zap.String("corp_code", corpCode),
		zap.Int("year", year),
		zap.String("reprt_code", reprt),
		zap.Int("rows", len(result.List)))

	lines := make([]model.StatementLine, 0, len(result.List))
	for _, row := range result.List {
		lines = append(lines, model.StatementLine{
			Statement:   model.Statement(row.StatementDiv),
			AccountID:   strings.TrimSpace(row.AccountID),
			AccountName: strings.TrimSpace(row.AccountName),
			Current:     parseAmount(row.Current),
			Prior:       parseAmount(row.Prior),
		})
	}
	return lines, nil
}

// classifyStatus maps an upstream status other than success or no-data
func classifyStatus(status, message string) *fetcher.FetchError {
	msg := fmt.Sprintf("dart status %s: %s", status, message)
	switch status {
	case statusTooMany, statusMaintenance, statusUndefined:
		return fetcher.NewTransientError(errors.New(msg), 0)
	case statusInvalidKey, statusDeniedKey, statusDeniedIP, statusBadArgument:
		return fetcher.NewClientError(0, msg)
	default:
		return fetcher.NewValidationError(msg)
	}
}

func reportCodes(period model.ReportPeriod) []string {
	switch period {
	case model.PeriodQuarter:
		return []string{reportQ1, reportHalf, reportQ3, reportAnnual}
	case model.PeriodHalf:
		return []string{reportHalf, reportAnnual}
	default:
		return []string{reportAnnual}
	}
}

func fsDiv(basis model.Basis) string {
	if basis == model.BasisConsolidated {
		return "CFS"
	}
	return "OFS"
}

// parseAmount parses "1,234", "-1,234" and "(1,234)". Blank, "-" and
// unparseable values are nil.
func parseAmount(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return nil
	}
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	if neg {
		v = -v
	}
	return model.Float(v)
}
