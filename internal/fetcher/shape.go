package fetcher

import (
	"math"

	"ratiofetcher/internal/model"
)

// Shape narrows record to the configured output fields, applies latest_only
// and the output format. Fields missing from record become null; fields
// outside the configured set are dropped.
func Shape(record model.RatioRecord, params model.FetchParameters) model.RatioRecord {
	fields := params.OutputFields()

	out := model.RatioRecord{Periods: make([]model.Period, 0, len(record.Periods))}
	for _, p := range record.Periods {
		values := make(map[string]*float64, len(fields))
		for _, f := range fields {
			var v *float64
			if src, ok := p.Values[f]; ok && src != nil {
				v = format(f, *src, params.OutputFormat)
			}
			values[f] = v
		}
		out.Periods = append(out.Periods, model.Period{Date: p.Date, Values: values})
	}
	out.Sort()

	if params.LatestOnly {
		if latest, ok := out.Latest(); ok {
			out.Periods = []model.Period{latest}
		}
	}
	return out
}

func format(field string, v float64, f model.OutputFormat) *float64 {
	if f != model.FormatPercent {
		return model.Float(v)
	}
	switch {
	case model.IsPercentField(field):
		return model.Float(round(v*100, 2))
	case model.IsMultipleField(field):
		return model.Float(round(v, 2))
	case field == "free_cash_flow":
		return model.Float(math.Round(v))
	default:
		return model.Float(v)
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
