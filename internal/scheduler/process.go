package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ratiofetcher/internal/fetcher"
	"ratiofetcher/internal/model"
)

// CommandFactory builds the command that serves one job through ServeWorker.
// The command must be bound to ctx so it is killed when ctx is done.
type CommandFactory func(ctx context.Context) *exec.Cmd

// Job is the request written to a worker process's stdin
type Job struct {
	Target model.Target          `json:"target"`
	Params model.FetchParameters `json:"params"`
}

// waitDelay bounds how long a killed worker may hold its pipes open
const waitDelay = 2 * time.Second

// maxStderr is how much worker stderr is kept for failure details
const maxStderr = 512

// ProcessExecutor runs every fetch in its own child process
type ProcessExecutor struct {
	command CommandFactory
	opts    Options
}

// NewProcessExecutor creates a ProcessExecutor
func NewProcessExecutor(command CommandFactory, opts Options) *ProcessExecutor {
	return &ProcessExecutor{command: command, opts: opts.withDefaults()}
}

// Run implements Scheduler
func (e *ProcessExecutor) Run(ctx context.Context, targets []model.Target, params model.FetchParameters, onDone func(Result)) []Result {
	c := newCollector(len(targets), onDone)

	var g errgroup.Group
	g.SetLimit(e.opts.MaxWorkers)
	for _, t := range targets {
		g.Go(func() error {
			start := time.Now()
			out := e.runOne(ctx, t, params)
			c.add(Result{Target: t, Outcome: out, Elapsed: time.Since(start)})
			return nil
		})
	}
	_ = g.Wait()
	return c.all()
}

func (e *ProcessExecutor) runOne(ctx context.Context, t model.Target, params model.FetchParameters) fetcher.Outcome {
	if ctx.Err() != nil {
		return interrupted(ctx)
	}

	log := zap.L().With(zap.String("query", t.Query), zap.String("code", t.CanonicalCode))

	job, err := json.Marshal(Job{Target: t, Params: params})
	if err != nil {
		return fetcher.Failed(fetcher.ReasonWorkerError, eris.Wrap(err, "scheduler: encode job"))
	}

	itemCtx, cancel := itemContext(ctx, e.opts.PerItemTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := e.command(itemCtx)
	cmd.Stdin = bytes.NewReader(append(job, '\n'))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	runErr := cmd.Run()

	if errors.Is(itemCtx.Err(), context.DeadlineExceeded) {
		log.Warn("worker process timed out, killed", zap.Duration("timeout", e.opts.PerItemTimeout))
		return fetcher.TimedOut()
	}
	if ctx.Err() != nil {
		return interrupted(ctx)
	}
	if runErr != nil {
		detail := tail(stderr.String(), maxStderr)
		log.Warn("worker process failed", zap.Error(runErr), zap.String("stderr", detail))
		return fetcher.Failed(fetcher.ReasonWorkerError, eris.Wrapf(runErr, "scheduler: worker process: %s", detail))
	}

	out, err := decodeOutcome(&stdout)
	if err != nil {
		log.Warn("worker process answered garbage", zap.Error(err))
		return fetcher.Failed(fetcher.ReasonWorkerError, err)
	}
	return out
}

// decodeOutcome reads the last JSON line of the worker output
func decodeOutcome(r io.Reader) (fetcher.Outcome, error) {
	var last string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); strings.HasPrefix(line, "{") {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return fetcher.Outcome{}, eris.Wrap(err, "scheduler: read worker output")
	}
	if last == "" {
		return fetcher.Outcome{}, eris.New("scheduler: worker produced no outcome")
	}

	var out fetcher.Outcome
	if err := json.Unmarshal([]byte(last), &out); err != nil {
		return fetcher.Outcome{}, eris.Wrap(err, "scheduler: decode worker outcome")
	}
	if out.Kind == "" {
		return fetcher.Outcome{}, eris.New("scheduler: worker outcome has no kind")
	}
	return out, nil
}

// ServeWorker is the child-process side of the process executor: it reads
// one Job from r, fetches it with worker and writes the outcome as one JSON
// line to w.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, worker Fetcher) error {
	var job Job
	if err := json.NewDecoder(r).Decode(&job); err != nil {
		return eris.Wrap(err, "scheduler: decode job")
	}

	out := worker.Fetch(ctx, job.Target, job.Params)

	if err := json.NewEncoder(w).Encode(out); err != nil {
		return eris.Wrap(err, "scheduler: encode outcome")
	}
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
