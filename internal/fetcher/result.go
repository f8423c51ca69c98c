package fetcher

import (
	"ratiofetcher/internal/model"
)

// OutcomeKind tags the variant held by an Outcome
type OutcomeKind string

const (
	OutcomeSuccess         OutcomeKind = "success"
	OutcomeQualityRejected OutcomeKind = "quality_rejected"
	OutcomeFailed          OutcomeKind = "failed"
	OutcomeTimedOut        OutcomeKind = "timed_out"
)

// Machine-readable reasons attached to non-success outcomes
const (
	ReasonNotFound         = "not_found"
	ReasonNoStockCode      = "no_stock_code"
	ReasonExhaustedRetries = "exhausted_retries"
	ReasonNoData           = "no_data"
	ReasonUpstreamError    = "upstream_error"
	ReasonTimeout          = "timeout"
	ReasonWorkerError      = "worker_error"
)

// Outcome is the result for one target. Exactly one outcome is produced per
// target; it travels from the worker through the scheduler to the report,
// and is JSON encoded when the worker runs in a separate process.
type Outcome struct {
	Kind OutcomeKind `json:"kind"`

	// Record is set for success and quality_rejected outcomes.
	Record *model.RatioRecord `json:"record,omitempty"`

	// Source is set for success outcomes.
	Source model.Source `json:"source,omitempty"`

	// Basis is the statement basis the record was computed from. It differs
	// from the requested basis after a fallback.
	Basis model.Basis `json:"basis,omitempty"`

	// Reason is a machine-readable code for non-success outcomes.
	Reason string `json:"reason,omitempty"`

	// Detail carries the last error message, for logs and manifests.
	Detail string `json:"detail,omitempty"`
}

// Success builds a success outcome
func Success(record model.RatioRecord, source model.Source, basis model.Basis) Outcome {
	return Outcome{Kind: OutcomeSuccess, Record: &record, Source: source, Basis: basis}
}

// QualityRejected builds an outcome for a record that did not pass the quality gate
func QualityRejected(record model.RatioRecord, reason string) Outcome {
	return Outcome{Kind: OutcomeQualityRejected, Record: &record, Reason: reason}
}

// Failed builds a failure outcome. err may be nil.
func Failed(reason string, err error) Outcome {
	o := Outcome{Kind: OutcomeFailed, Reason: reason}
	if err != nil {
		o.Detail = err.Error()
	}
	return o
}

// TimedOut builds the outcome recorded when a task exceeded its time budget
func TimedOut() Outcome {
	return Outcome{Kind: OutcomeTimedOut, Reason: ReasonTimeout}
}

// OK reports whether the outcome carries an accepted record
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess && o.Record != nil
}

// Retryable reports whether running the target again in a later pass could
// change the outcome
func (o Outcome) Retryable() bool {
	switch o.Kind {
	case OutcomeTimedOut:
		return true
	case OutcomeFailed:
		return o.Reason == ReasonExhaustedRetries || o.Reason == ReasonWorkerError
	default:
		return false
	}
}
