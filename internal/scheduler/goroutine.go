package scheduler

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"ratiofetcher/internal/fetcher"
	"ratiofetcher/internal/model"
)

// GoroutineExecutor runs fetches on a bounded goroutine pool
type GoroutineExecutor struct {
	worker Fetcher
	opts   Options
}

// NewGoroutineExecutor creates a GoroutineExecutor
func NewGoroutineExecutor(worker Fetcher, opts Options) *GoroutineExecutor {
	return &GoroutineExecutor{worker: worker, opts: opts.withDefaults()}
}

// Run implements Scheduler
func (e *GoroutineExecutor) Run(ctx context.Context, targets []model.Target, params model.FetchParameters, onDone func(Result)) []Result {
	c := newCollector(len(targets), onDone)
	p := pool.New().WithMaxGoroutines(e.opts.MaxWorkers)
	for _, t := range targets {
		p.Go(func() {
			start := time.Now()
			out := e.runOne(ctx, t, params)
			c.add(Result{Target: t, Outcome: out, Elapsed: time.Since(start)})
		})
	}
	p.Wait()
	return c.all()
}

// runOne waits for the fetch or its deadline, whichever comes first. A fetch
// that outlives its deadline keeps running; its outcome is dropped.
func (e *GoroutineExecutor) runOne(ctx context.Context, t model.Target, params model.FetchParameters) fetcher.Outcome {
	if ctx.Err() != nil {
		return interrupted(ctx)
	}

	itemCtx, cancel := itemContext(ctx, e.opts.PerItemTimeout)
	defer cancel()

	done := make(chan fetcher.Outcome, 1)
	go func() {
		done <- e.worker.Fetch(itemCtx, t, params)
	}()

	select {
	case out := <-done:
		if out.Kind == fetcher.OutcomeTimedOut && ctx.Err() != nil {
			return interrupted(ctx)
		}
		return out
	case <-itemCtx.Done():
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		zap.L().Warn("fetch timed out",
			zap.String("query", t.Query),
			zap.String("code", t.CanonicalCode),
			zap.Duration("timeout", e.opts.PerItemTimeout))
		return fetcher.TimedOut()
	}
}
