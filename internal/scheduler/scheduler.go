// Package scheduler runs fetches for cache misses on a bounded pool of
// goroutines or worker processes, each under a hard per-item timeout.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"ratiofetcher/internal/fetcher"
	"ratiofetcher/internal/model"
)

// ExecutorKind selects how fetches are executed
type ExecutorKind string

const (
	// ExecutorGoroutine runs fetches in-process. A hung fetch is abandoned
	// on timeout, not killed.
	ExecutorGoroutine ExecutorKind = "goroutine"
	// ExecutorProcess runs every fetch in a child process that is killed on
	// timeout.
	ExecutorProcess ExecutorKind = "process"
)

// ParseExecutorKind converts a configuration string into an ExecutorKind
func ParseExecutorKind(s string) (ExecutorKind, error) {
	switch k := ExecutorKind(s); k {
	case ExecutorGoroutine, ExecutorProcess:
		return k, nil
	case "":
		return ExecutorGoroutine, nil
	default:
		return "", eris.Errorf("scheduler: unknown executor %q", s)
	}
}

// Fetcher produces the outcome of one target
type Fetcher interface {
	Fetch(ctx context.Context, target model.Target, params model.FetchParameters) fetcher.Outcome
}

// Result is an outcome tagged with the target it belongs to
type Result struct {
	Target  model.Target    `json:"target"`
	Outcome fetcher.Outcome `json:"outcome"`
	Elapsed time.Duration   `json:"elapsed"`
}

// Scheduler runs one task per target and returns results in completion
// order. onDone, when set, is called once per result as it completes, from
// the goroutine that produced it; calls may run concurrently.
type Scheduler interface {
	Run(ctx context.Context, targets []model.Target, params model.FetchParameters, onDone func(Result)) []Result
}

const defaultMaxWorkers = 4

// Options bounds a Scheduler
type Options struct {
	MaxWorkers int
	// PerItemTimeout is the hard budget of one fetch. Zero means no limit.
	PerItemTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = defaultMaxWorkers
	}
	return o
}

// New builds the executor selected by kind. The goroutine executor needs
// worker; the process executor needs command.
func New(kind ExecutorKind, opts Options, worker Fetcher, command CommandFactory) (Scheduler, error) {
	switch kind {
	case ExecutorGoroutine, "":
		if worker == nil {
			return nil, eris.New("scheduler: goroutine executor needs a fetcher")
		}
		return NewGoroutineExecutor(worker, opts), nil
	case ExecutorProcess:
		if command == nil {
			return nil, eris.New("scheduler: process executor needs a command factory")
		}
		return NewProcessExecutor(command, opts), nil
	default:
		return nil, eris.Errorf("scheduler: unknown executor %q", kind)
	}
}

// collector gathers results. onDone runs outside the lock so slow callbacks
// on one worker do not hold up the others.
type collector struct {
	mu      sync.Mutex
	results []Result
	onDone  func(Result)
}

func newCollector(n int, onDone func(Result)) *collector {
	return &collector{results: make([]Result, 0, n), onDone: onDone}
}

func (c *collector) add(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	if c.onDone != nil {
		c.onDone(r)
	}
}

func (c *collector) all() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// itemContext applies the per-item timeout
func itemContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// interrupted converts a cancelled batch into a retryable failure
func interrupted(ctx context.Context) fetcher.Outcome {
	return fetcher.Failed(fetcher.ReasonWorkerError, eris.Wrap(context.Cause(ctx), "scheduler: batch interrupted"))
}
