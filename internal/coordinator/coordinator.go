// Package coordinator runs a batch end to end: resolve, cache lookup,
// dedupe, schedule, gate, store and assemble.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"ratiofetcher/internal/cache"
	"ratiofetcher/internal/fetcher"
	"ratiofetcher/internal/model"
	"ratiofetcher/internal/quality"
	"ratiofetcher/internal/report"
	"ratiofetcher/internal/scheduler"
)

// Resolver maps raw identifiers to targets
type Resolver interface {
	Resolve(identifiers []string, mode model.ResolveMode) []model.Target
}

// Cache is the part of cache.Manager the coordinator drives
type Cache interface {
	Lookup(ctx context.Context, key model.CacheKey) (*cache.Entry, model.Source, bool)
	Snapshot(ctx context.Context, code string) (*cache.Entry, bool)
	Store(ctx context.Context, key model.CacheKey, record model.RatioRecord) (quality.Verdict, error)
}

// Options tunes a batch
type Options struct {
	Mode model.ResolveMode
	// ForceRefresh skips both cache tiers on lookup. Accepted results are
	// still written through.
	ForceRefresh bool
}

// Coordinator wires the resolver, the cache and the scheduler together
type Coordinator struct {
	resolver  Resolver
	cache     Cache
	scheduler scheduler.Scheduler
	opts      Options
}

// New creates a Coordinator
func New(res Resolver, c Cache, s scheduler.Scheduler, opts Options) *Coordinator {
	if opts.Mode == "" {
		opts.Mode = model.ResolveAuto
	}
	return &Coordinator{resolver: res, cache: c, scheduler: s, opts: opts}
}

// Run processes one batch. The returned report has exactly one result per
// distinct non-blank identifier, in input order. Individual failures never
// fail the batch; an error is returned only for invalid parameters.
func (c *Coordinator) Run(ctx context.Context, identifiers []string, params model.FetchParameters) (*report.BatchReport, error) {
	return c.RunPasses(ctx, identifiers, params, 1)
}

// RunPasses runs up to passes batches. After the first, each pass re-runs
// only the identifiers whose outcome was retryable, and its outcomes replace
// the earlier ones. Passes stop early when nothing is retryable or ctx is
// done.
func (c *Coordinator) RunPasses(ctx context.Context, identifiers []string, params model.FetchParameters, passes int) (*report.BatchReport, error) {
	if err := params.Validate(); err != nil {
		return nil, eris.Wrap(err, "coordinator: invalid fetch parameters")
	}
	if passes < 1 {
		passes = 1
	}

	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	targets := c.resolver.Resolve(identifiers, c.opts.Mode)
	items := make(map[string]report.Item, len(targets))
	pending := targets

	for pass := 1; pass <= passes; pass++ {
		start := time.Now()
		for _, it := range c.runPass(ctx, log, pending, params) {
			items[it.Target.Query] = it
		}
		log.Info("pass finished",
			zap.Int("pass", pass),
			zap.Int("targets", len(pending)),
			zap.Duration("elapsed", time.Since(start)))

		if pass == passes || ctx.Err() != nil {
			break
		}
		pending = retryable(pending, items)
		if len(pending) == 0 {
			break
		}
	}

	outcomes := make([]report.Item, 0, len(items))
	for _, it := range items {
		outcomes = append(outcomes, it)
	}
	r := report.Assemble(identifiers, targets, outcomes)
	r.RunID = runID

	s := r.Summarize()
	log.Info("batch finished",
		zap.Int("total", s.Total),
		zap.Int("succeeded", s.Succeeded),
		zap.Int("failed", s.Failed),
		zap.Int("skipped", s.Skipped))
	return r, nil
}

// runPass produces one item per resolved target. Unresolved targets are
// left to the report.
func (c *Coordinator) runPass(ctx context.Context, log *zap.Logger, targets []model.Target, params model.FetchParameters) []report.Item {
	byCode := make(map[string]fetcher.Outcome)
	fallbacks := make(map[string]*cache.Entry)
	var misses []model.Target

	for _, t := range targets {
		if !t.Resolved() {
			continue
		}
		code := t.CanonicalCode
		if _, dup := byCode[code]; dup {
			continue
		}
		if c.opts.ForceRefresh {
			if e, ok := c.cache.Snapshot(ctx, code); ok {
				fallbacks[code] = e
			}
		} else if e, src, ok := c.cache.Lookup(ctx, model.NewCacheKey(code, params)); ok {
			byCode[code] = fetcher.Success(e.Record, src, "")
			continue
		}
		// placeholder until the scheduler reports back; also dedupes misses
		byCode[code] = fetcher.Failed(fetcher.ReasonWorkerError, eris.New("coordinator: no result"))
		misses = append(misses, t)
	}

	log.Info("cache lookup finished",
		zap.Int("targets", len(targets)),
		zap.Int("hits", len(byCode)-len(misses)),
		zap.Int("misses", len(misses)),
		zap.Bool("force_refresh", c.opts.ForceRefresh))

	if len(misses) > 0 {
		// onDone runs on the worker goroutines, so cache writes proceed in
		// parallel; only the map update is serialized
		var mu sync.Mutex
		c.scheduler.Run(ctx, misses, params, func(r scheduler.Result) {
			out := c.admit(ctx, log, r, params, fallbacks[r.Target.CanonicalCode])
			mu.Lock()
			byCode[r.Target.CanonicalCode] = out
			mu.Unlock()
			log.Debug("target finished",
				zap.String("query", r.Target.Query),
				zap.String("code", r.Target.CanonicalCode),
				zap.String("kind", string(out.Kind)),
				zap.String("reason", out.Reason),
				zap.Duration("elapsed", r.Elapsed))
		})
	}

	items := make([]report.Item, 0, len(targets))
	for _, t := range targets {
		if out, ok := byCode[t.CanonicalCode]; ok && t.Resolved() {
			items = append(items, report.Item{Target: t, Outcome: out})
		}
	}
	return items
}

// admit passes a fetched record through the cache, which gates it. A
// rejected record falls back to the durable snapshot that force refresh
// skipped, when there is one.
func (c *Coordinator) admit(ctx context.Context, log *zap.Logger, r scheduler.Result, params model.FetchParameters, fallback *cache.Entry) fetcher.Outcome {
	out := r.Outcome
	if out.Kind != fetcher.OutcomeSuccess || out.Record == nil {
		return out
	}

	key := model.NewCacheKey(r.Target.CanonicalCode, params)
	v, err := c.cache.Store(context.WithoutCancel(ctx), key, *out.Record)
	if err != nil {
		log.Error("cache store failed", zap.String("key", key.String()), zap.Error(err))
	}
	if v.Accepted {
		return out
	}

	if fallback != nil {
		log.Info("fresh record below quality bar, keeping snapshot",
			zap.String("code", key.Code),
			zap.String("reason", string(v.Reason)))
		return fetcher.Success(fallback.Record, model.SourceDurable, "")
	}
	return fetcher.QualityRejected(*out.Record, string(v.Reason))
}

func retryable(targets []model.Target, items map[string]report.Item) []model.Target {
	var again []model.Target
	for _, t := range targets {
		if it, ok := items[t.Query]; ok && it.Outcome.Retryable() {
			again = append(again, t)
		}
	}
	return again
}
