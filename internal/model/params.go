package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Basis is the statement basis a filing is reported on
type Basis string

const (
	// BasisConsolidated covers the group of entities
	BasisConsolidated Basis = "consolidated"
	// BasisStandalone covers the filing entity alone
	BasisStandalone Basis = "standalone"
)

// Opposite returns the other statement basis
func (b Basis) Opposite() Basis {
	if b == BasisConsolidated {
		return BasisStandalone
	}
	return BasisConsolidated
}

// ReportPeriod is the reporting period type requested from the upstream
type ReportPeriod string

const (
	PeriodAnnual  ReportPeriod = "annual"
	PeriodHalf    ReportPeriod = "half"
	PeriodQuarter ReportPeriod = "quarter"
)

// OutputFormat controls how ratio values are scaled in the produced records
type OutputFormat string

const (
	// FormatRaw keeps fractions as computed (0.25 for 25%)
	FormatRaw OutputFormat = "raw"
	// FormatPercent scales percentage fields by 100 and rounds them
	FormatPercent OutputFormat = "percent"
)

// DateLayout is the upstream date layout used for date_from and period keys
const DateLayout = "20060102"

// FetchParameters is everything besides the company code that shapes a fetch.
// Together with a code it determines the CacheKey.
type FetchParameters struct {
	DateFrom     string       `json:"date_from"`
	ReportPeriod ReportPeriod `json:"report_period"`
	Basis        Basis        `json:"statement_basis"`
	LatestOnly   bool         `json:"latest_only"`
	OutputFormat OutputFormat `json:"output_format"`
	// Fields narrows the output schema; empty means every schema field.
	Fields []string `json:"fields,omitempty"`
}

// Validate checks enum values, the date layout and requested fields
func (p FetchParameters) Validate() error {
	if _, err := time.Parse(DateLayout, p.DateFrom); err != nil {
		return eris.Wrapf(err, "model: date_from %q must be YYYYMMDD", p.DateFrom)
	}
	switch p.ReportPeriod {
	case PeriodAnnual, PeriodHalf, PeriodQuarter:
	default:
		return eris.Errorf("model: unknown report period %q", p.ReportPeriod)
	}
	switch p.Basis {
	case BasisConsolidated, BasisStandalone:
	default:
		return eris.Errorf("model: unknown statement basis %q", p.Basis)
	}
	switch p.OutputFormat {
	case FormatRaw, FormatPercent:
	default:
		return eris.Errorf("model: unknown output format %q", p.OutputFormat)
	}
	for _, f := range p.Fields {
		if !IsField(f) {
			return eris.Errorf("model: field %q is not part of schema %s", f, SchemaVersion)
		}
	}
	return nil
}

// OutputFields returns the configured fields, or the full schema when none are set
func (p FetchParameters) OutputFields() []string {
	if len(p.Fields) == 0 {
		return Fields
	}
	return p.Fields
}

// CacheKey identifies one blob-tier entry: a code plus a digest of the parameters
type CacheKey struct {
	Code string
	Hash string
}

func (k CacheKey) String() string {
	return k.Code + ":" + k.Hash
}

// keyPayload is hashed as JSON; struct field order keeps the encoding stable.
type keyPayload struct {
	Code          string          `json:"code"`
	Params        FetchParameters `json:"params"`
	SchemaVersion string          `json:"schema_version"`
}

// NewCacheKey derives the blob key for a code and parameter set. The schema
// version is mixed in so a schema change starts a fresh key space.
func NewCacheKey(code string, p FetchParameters) CacheKey {
	code = strings.TrimSpace(code)
	p.Fields = append([]string(nil), p.OutputFields()...)
	raw, _ := json.Marshal(keyPayload{
		Code:          code,
		Params:        p,
		SchemaVersion: SchemaVersion,
	})
	sum := sha256.Sum256(raw)
	return CacheKey{Code: code, Hash: hex.EncodeToString(sum[:])}
}
