// Package report assembles the final batch report in input order and writes
// its artifacts: the failed and skipped manifests and the merged dataset.
package report

import (
	"strings"

	"ratiofetcher/internal/fetcher"
	"ratiofetcher/internal/model"
)

// Item is one input identifier with its outcome
type Item struct {
	Target  model.Target    `json:"target"`
	Outcome fetcher.Outcome `json:"outcome"`
}

// ManifestRow is one line of the failed or skipped manifest
type ManifestRow struct {
	Identifier string `csv:"identifier" json:"identifier"`
	StockCode  string `csv:"stock_code" json:"stock_code"`
	Reason     string `csv:"reason" json:"reason"`
}

// BatchReport is the final shape of a batch: one item per distinct input
// identifier, in input order, plus the manifests
type BatchReport struct {
	RunID   string        `json:"run_id,omitempty"`
	Results []Item        `json:"results"`
	Failed  []ManifestRow `json:"failed"`
	Skipped []ManifestRow `json:"skipped"`
}

// HasFailures reports whether any item ended in a hard failure
func (r *BatchReport) HasFailures() bool {
	return len(r.Failed) > 0
}

// Summary counts outcomes by kind and successes by source
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	BySource  map[model.Source]int
}

// Summarize counts the report's outcomes
func (r *BatchReport) Summarize() Summary {
	s := Summary{
		Total:    len(r.Results),
		Failed:   len(r.Failed),
		Skipped:  len(r.Skipped),
		BySource: make(map[model.Source]int),
	}
	for _, it := range r.Results {
		if it.Outcome.OK() {
			s.Succeeded++
			s.BySource[it.Outcome.Source]++
		}
	}
	return s
}

// Assemble restores input order and classifies outcomes. queries is the raw
// input; targets and outcomes may arrive in any order and are matched by
// query. The first occurrence of a repeated query wins. A query without a
// target or outcome is reported as not found or as a worker error.
func Assemble(queries []string, targets []model.Target, outcomes []Item) *BatchReport {
	byQuery := make(map[string]model.Target, len(targets))
	for _, t := range targets {
		if _, dup := byQuery[t.Query]; !dup {
			byQuery[t.Query] = t
		}
	}
	outByQuery := make(map[string]fetcher.Outcome, len(outcomes))
	for _, it := range outcomes {
		if _, dup := outByQuery[it.Target.Query]; !dup {
			outByQuery[it.Target.Query] = it.Outcome
		}
	}

	r := &BatchReport{Results: make([]Item, 0, len(queries))}
	seen := make(map[string]struct{}, len(queries))
	for _, raw := range queries {
		q := strings.TrimSpace(raw)
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}

		t, ok := byQuery[q]
		if !ok {
			t = model.Target{Query: q}
		}
		out := outcomeFor(t, outByQuery)
		r.Results = append(r.Results, Item{Target: t, Outcome: out})
		r.classify(t, out)
	}
	return r
}

func outcomeFor(t model.Target, outcomes map[string]fetcher.Outcome) fetcher.Outcome {
	if !t.Resolved() {
		if t.DisplayName != "" {
			return fetcher.Failed(fetcher.ReasonNoStockCode, nil)
		}
		return fetcher.Failed(fetcher.ReasonNotFound, nil)
	}
	if out, ok := outcomes[t.Query]; ok {
		return out
	}
	return fetcher.Failed(fetcher.ReasonWorkerError, nil)
}

func (r *BatchReport) classify(t model.Target, out fetcher.Outcome) {
	row := ManifestRow{Identifier: t.Query, StockCode: t.CanonicalCode, Reason: out.Reason}
	switch out.Kind {
	case fetcher.OutcomeSuccess:
	case fetcher.OutcomeQualityRejected:
		r.Skipped = append(r.Skipped, row)
	case fetcher.OutcomeTimedOut:
		row.Reason = fetcher.ReasonTimeout
		r.Failed = append(r.Failed, row)
	default:
		if row.Reason == "" {
			row.Reason = fetcher.ReasonWorkerError
		}
		r.Failed = append(r.Failed, row)
	}
}
