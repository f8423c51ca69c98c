// Package fetcher retrieves the ratio record of a single company: it calls the
// statement extractor with retries and basis fallback, computes ratios and
// shapes the result to the configured schema.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ratiofetcher/internal/model"
)

// Extractor returns the raw statements filed for a company. Failures are
// reported as *FetchError values of type not_found, basis_not_found or
// transient.
type Extractor interface {
	Extract(ctx context.Context, code, dateFrom string, period model.ReportPeriod, basis model.Basis) (*model.Statements, error)
}

// Computer turns raw statements into a ratio record. It is pure.
type Computer interface {
	Compute(st *model.Statements) model.RatioRecord
}

const (
	defaultRetries     = 3
	defaultThrottle    = 1200 * time.Millisecond
	defaultBackoffBase = 900 * time.Millisecond
)

// Options tunes the retry loop of a Worker
type Options struct {
	// Retries is the number of attempts per target. Default: 3.
	Retries int
	// Throttle is slept before every attempt.
	Throttle time.Duration
	// BackoffBase is multiplied by the attempt number after a failed attempt.
	BackoffBase time.Duration
}

// DefaultOptions returns the production retry settings
func DefaultOptions() Options {
	return Options{
		Retries:     defaultRetries,
		Throttle:    defaultThrottle,
		BackoffBase: defaultBackoffBase,
	}
}

// Worker fetches one target end to end. It is safe for concurrent use.
type Worker struct {
	extractor Extractor
	computer  Computer
	opts      Options
}

// NewWorker creates a Worker over the given collaborators
func NewWorker(extractor Extractor, computer Computer, opts Options) *Worker {
	if opts.Retries <= 0 {
		opts.Retries = defaultRetries
	}
	return &Worker{extractor: extractor, computer: computer, opts: opts}
}

// Fetch runs the retry loop for target and converts every failure into an
// Outcome. The returned outcome is never quality-checked; that is up to the
// caller.
func (w *Worker) Fetch(ctx context.Context, target model.Target, params model.FetchParameters) (out Outcome) {
	log := zap.L().With(zap.String("query", target.Query), zap.String("code", target.CanonicalCode))

	defer func() {
		if r := recover(); r != nil {
			log.Error("fetch worker panicked", zap.Any("panic", r))
			out = Failed(ReasonWorkerError, fmt.Errorf("panic: %v", r))
		}
	}()

	if !target.Resolved() {
		return Failed(ReasonNotFound, nil)
	}

	var lastErr error
	for attempt := 1; attempt <= w.opts.Retries; attempt++ {
		if err := wait(ctx, w.opts.Throttle); err != nil {
			return TimedOut()
		}

		record, basis, err := w.attempt(ctx, target.CanonicalCode, params)
		if err == nil {
			log.Debug("fetch succeeded", zap.Int("attempt", attempt), zap.String("basis", string(basis)))
			return Success(record, model.SourceFetch, basis)
		}
		lastErr = err

		if ctx.Err() != nil {
			return TimedOut()
		}

		switch TypeOf(err) {
		case ErrorTypeBasisNotFound:
			// the opposite basis was already tried within this attempt
			log.Info("no filings on either basis", zap.Int("attempt", attempt), zap.Error(err))
			return Failed(ReasonNoData, err)
		case ErrorTypeNotFound:
			// ends this attempt only; the next one may find the filer
		default:
			if !IsRetryable(err) {
				log.Warn("fetch rejected by upstream", zap.Int("attempt", attempt), zap.Error(err))
				return Failed(ReasonUpstreamError, err)
			}
		}

		log.Warn("fetch attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("retries", w.opts.Retries),
			zap.String("basis", string(params.Basis)),
			zap.Error(err))

		if attempt < w.opts.Retries {
			if err := wait(ctx, w.opts.BackoffBase*time.Duration(attempt)); err != nil {
				return TimedOut()
			}
		}
	}

	return Failed(ReasonExhaustedRetries, lastErr)
}

// attempt performs one extraction, with at most one switch to the opposite
// statement basis, and computes the shaped record.
func (w *Worker) attempt(ctx context.Context, code string, params model.FetchParameters) (model.RatioRecord, model.Basis, error) {
	basis := params.Basis
	st, err := w.extractor.Extract(ctx, code, params.DateFrom, params.ReportPeriod, basis)
	if IsBasisNotFound(err) {
		alt := basis.Opposite()
		zap.L().Debug("statement basis not filed, switching",
			zap.String("code", code),
			zap.String("basis", string(basis)),
			zap.String("fallback", string(alt)))
		basis = alt
		st, err = w.extractor.Extract(ctx, code, params.DateFrom, params.ReportPeriod, basis)
	}
	if err != nil {
		return model.RatioRecord{}, basis, err
	}
	if st.Empty() {
		return model.RatioRecord{}, basis, NewEmptyError()
	}

	record := Shape(w.computer.Compute(st), params)
	if record.Empty() {
		return model.RatioRecord{}, basis, NewEmptyError()
	}
	return record, basis, nil
}

// wait sleeps for d unless ctx is done first
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
