package testutil

import (
	"context"
	"fmt"
	"sync"

	"ratiofetcher/internal/model"
)

// ExtractCall records one call made to a MockExtractor
type ExtractCall struct {
	Code  string
	Basis model.Basis
}

// MockExtractor is a mock statement extractor for testing
type MockExtractor struct {
	ExtractFunc func(ctx context.Context, code string, basis model.Basis) (*model.Statements, error)

	mu    sync.Mutex
	calls []ExtractCall
}

// Extract implements fetcher.Extractor
func (m *MockExtractor) Extract(ctx context.Context, code, _ string, _ model.ReportPeriod, basis model.Basis) (*model.Statements, error) {
	m.mu.Lock()
	m.calls = append(m.calls, ExtractCall{Code: code, Basis: basis})
	m.mu.Unlock()

	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, code, basis)
	}
	return NewStatements(code, basis), nil
}

// Calls returns a copy of the recorded calls
func (m *MockExtractor) Calls() []ExtractCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExtractCall(nil), m.calls...)
}

// CallCount returns the number of calls, optionally restricted to one code
func (m *MockExtractor) CallCount(code string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if code == "" {
		return len(m.calls)
	}
	n := 0
	for _, c := range m.calls {
		if c.Code == code {
			n++
		}
	}
	return n
}

// MockComputer is a mock ratio computer. Without ComputeFunc it returns a
// record with Filled fields set on a single period.
type MockComputer struct {
	ComputeFunc func(st *model.Statements) model.RatioRecord
	Filled      int
}

// Compute implements fetcher.Computer
func (m *MockComputer) Compute(st *model.Statements) model.RatioRecord {
	if m.ComputeFunc != nil {
		return m.ComputeFunc(st)
	}
	filled := m.Filled
	if filled == 0 {
		filled = len(model.Fields)
	}
	return NewRecord("20231231", filled, 1)
}

// NewStatements builds a minimal non-empty statement set
func NewStatements(code string, basis model.Basis) *model.Statements {
	total := 1000.0
	return &model.Statements{
		Code:  code,
		Basis: basis,
		Sets: []model.StatementSet{{
			Period: "20231231",
			Lines: []model.StatementLine{{
				Statement:   model.StatementBalance,
				AccountID:   "ifrs-full_Assets",
				AccountName: "자산총계",
				Current:     &total,
			}},
		}},
	}
}

// NewRecord builds a one-period record whose first filled schema fields carry
// base, base+1, ... and whose remaining fields are null
func NewRecord(date string, filled int, base float64) model.RatioRecord {
	values := make(map[string]*float64, len(model.Fields))
	for i, f := range model.Fields {
		if i < filled {
			values[f] = model.Float(base + float64(i))
		} else {
			values[f] = nil
		}
	}
	return model.RatioRecord{Periods: []model.Period{{Date: date, Values: values}}}
}

// Code formats n as a six digit listing code
func Code(n int) string {
	return fmt.Sprintf("%06d", n)
}
