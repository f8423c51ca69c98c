package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"ratiofetcher/internal/model"
)

// Manifest file names written by WriteManifests
const (
	FailedManifest  = "failed_codes.csv"
	SkippedManifest = "skipped_codes.csv"
)

// DatasetFormat selects the dataset encoding
type DatasetFormat string

const (
	DatasetCSV  DatasetFormat = "csv"
	DatasetJSON DatasetFormat = "json"
)

// FormatFromPath picks the dataset format from the file extension
func FormatFromPath(path string) DatasetFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return DatasetJSON
	}
	return DatasetCSV
}

// WriteManifests writes both manifests into dir. They are always written,
// with only a header when empty, so a clean run replaces stale manifests.
func WriteManifests(dir string, r *BatchReport) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "report: create %s", dir)
	}
	if err := writeManifest(filepath.Join(dir, FailedManifest), r.Failed); err != nil {
		return err
	}
	return writeManifest(filepath.Join(dir, SkippedManifest), r.Skipped)
}

func writeManifest(path string, rows []ManifestRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(ManifestRow{}); err != nil {
		return eris.Wrap(err, "report: encode manifest header")
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return eris.Wrapf(err, "report: encode manifest row %s", row.Identifier)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: flush manifest")
	}
	return eris.Wrapf(os.WriteFile(path, buf.Bytes(), 0o644), "report: write %s", path)
}

// datasetRecord is one company in the JSON dataset
type datasetRecord struct {
	Query     string         `json:"query"`
	StockCode string         `json:"stock_code"`
	Name      string         `json:"name,omitempty"`
	Source    model.Source   `json:"source"`
	Basis     model.Basis    `json:"basis,omitempty"`
	Periods   []model.Period `json:"periods"`
}

// WriteDataset writes every successful record in input order. The CSV form
// has one row per company and period: stock_code, name, period, fields.
func WriteDataset(path string, r *BatchReport, format DatasetFormat) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "report: create %s", dir)
		}
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case DatasetJSON:
		data, err = encodeJSON(r)
	default:
		data, err = encodeCSV(r)
	}
	if err != nil {
		return err
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "report: write %s", path)
}

func encodeJSON(r *BatchReport) ([]byte, error) {
	records := make([]datasetRecord, 0, len(r.Results))
	for _, it := range r.Results {
		if !it.Outcome.OK() {
			continue
		}
		records = append(records, datasetRecord{
			Query:     it.Target.Query,
			StockCode: it.Target.CanonicalCode,
			Name:      it.Target.DisplayName,
			Source:    it.Outcome.Source,
			Basis:     it.Outcome.Basis,
			Periods:   it.Outcome.Record.Periods,
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	return data, eris.Wrap(err, "report: encode dataset")
}

func encodeCSV(r *BatchReport) ([]byte, error) {
	var union model.RatioRecord
	for _, it := range r.Results {
		if it.Outcome.OK() {
			union.Periods = append(union.Periods, it.Outcome.Record.Periods...)
		}
	}
	fields := union.FieldNames()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{"stock_code", "name", periodHeader}, fields...)); err != nil {
		return nil, eris.Wrap(err, "report: write dataset header")
	}
	row := make([]string, len(fields)+3)
	for _, it := range r.Results {
		if !it.Outcome.OK() {
			continue
		}
		for _, p := range it.Outcome.Record.Periods {
			row[0], row[1], row[2] = it.Target.CanonicalCode, it.Target.DisplayName, p.Date
			for i, f := range fields {
				row[i+3] = ""
				if v := p.Values[f]; v != nil {
					row[i+3] = strconv.FormatFloat(*v, 'g', -1, 64)
				}
			}
			if err := w.Write(row); err != nil {
				return nil, eris.Wrap(err, "report: write dataset row")
			}
		}
	}
	w.Flush()
	return buf.Bytes(), eris.Wrap(w.Error(), "report: flush dataset")
}

const periodHeader = "period"
