package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"ratiofetcher/internal/cache"
	"ratiofetcher/internal/config"
	"ratiofetcher/internal/dart"
	"ratiofetcher/internal/fetcher"
	"ratiofetcher/internal/ratelimit"
	"ratiofetcher/internal/ratios"
	"ratiofetcher/internal/resolver"
	"ratiofetcher/internal/scheduler"
)

// directoryFile is where a downloaded corp code directory is kept for reuse
// by later runs and by worker processes
const directoryFile = "corp_codes.json"

// directoryMaxAge bounds how long a downloaded directory is reused
const directoryMaxAge = 24 * time.Hour

// appEnv holds the collaborators shared by the fetching commands
type appEnv struct {
	cfg     *config.Config
	limiter *ratelimit.Limiter
	dir     *resolver.Directory
	dirPath string
	client  *dart.Client
	cache   *cache.Manager
}

// initApp loads the directory, opens the cache and builds the upstream client
func initApp(ctx context.Context, c *config.Config) (*appEnv, error) {
	env := &appEnv{cfg: c, limiter: newLimiter(c)}

	var err error
	env.dir, env.dirPath, err = loadDirectory(ctx, c, env.limiter)
	if err != nil {
		return nil, err
	}

	env.cache, err = openCache(ctx, c)
	if err != nil {
		return nil, err
	}

	env.client = dart.NewClient(dartOptions(c, env.limiter), env.dir)
	return env, nil
}

// Close releases the cache and the HTTP client
func (e *appEnv) Close() {
	if e.client != nil {
		_ = e.client.Close()
	}
	if e.cache != nil {
		if err := e.cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}

// scheduler builds the configured executor. Worker processes re-execute this
// binary with the same config and the directory file written by this run.
func (e *appEnv) scheduler(kind scheduler.ExecutorKind) (scheduler.Scheduler, error) {
	opts := scheduler.Options{
		MaxWorkers:     e.cfg.Scheduler.MaxWorkers,
		PerItemTimeout: e.cfg.PerItemTimeout(),
	}
	return scheduler.New(kind, opts, newWorker(e.cfg, e.client), workerCommand(e.dirPath))
}

func newLimiter(c *config.Config) *ratelimit.Limiter {
	l := ratelimit.New()
	l.SetLimit(ratelimit.APIDart, c.Dart.RequestsPerSecond, 1)
	return l
}

func dartOptions(c *config.Config, l *ratelimit.Limiter) dart.Options {
	return dart.Options{
		APIKey:      c.Dart.APIKey,
		BaseURL:     c.Dart.BaseURL,
		HTTPRetries: c.Dart.HTTPRetries,
		Timeout:     time.Duration(c.Dart.TimeoutSecs) * time.Second,
		Limiter:     l,
	}
}

func newWorker(c *config.Config, ext fetcher.Extractor) *fetcher.Worker {
	return fetcher.NewWorker(ext, ratios.New(), fetcher.Options{
		Retries:     c.Fetch.Retries,
		Throttle:    time.Duration(c.Fetch.ThrottleMs) * time.Millisecond,
		BackoffBase: time.Duration(c.Fetch.BackoffBaseMs) * time.Millisecond,
	})
}

func openCache(ctx context.Context, c *config.Config) (*cache.Manager, error) {
	backend, err := cache.ParseBlobBackend(c.Cache.BlobBackend)
	if err != nil {
		return nil, err
	}
	return cache.Open(ctx, cache.Options{
		DurableDir:  c.Cache.DurableDir,
		BlobBackend: backend,
		BlobDir:     c.Cache.BlobDir,
		SQLitePath:  c.Cache.SQLitePath,
		TTL:         c.TTL(),
		Gate:        c.Gate(),
	})
}

// loadDirectory reads directory.path when set. Otherwise it reuses a recent
// download under the report dir, or downloads the corp code archive.
func loadDirectory(ctx context.Context, c *config.Config, l *ratelimit.Limiter) (*resolver.Directory, string, error) {
	if c.Directory.Path != "" {
		d, err := resolver.LoadFile(c.Directory.Path)
		return d, c.Directory.Path, err
	}

	path := filepath.Join(c.Report.Dir, directoryFile)
	if fi, err := os.Stat(path); err == nil && time.Since(fi.ModTime()) < directoryMaxAge {
		if d, err := resolver.LoadFile(path); err == nil {
			zap.L().Debug("reusing downloaded directory", zap.String("path", path), zap.Int("entries", d.Len()))
			return d, path, nil
		}
	}

	loader := dart.NewClient(dartOptions(c, l), nil)
	defer loader.Close()

	d, err := loader.LoadDirectory(ctx)
	if err != nil {
		return nil, "", eris.Wrap(err, "load identifier directory")
	}
	if err := d.SaveFile(path); err != nil {
		zap.L().Warn("could not keep downloaded directory", zap.String("path", path), zap.Error(err))
		return d, "", nil
	}
	return d, path, nil
}

// workerCommand re-executes this binary as a fetch worker
func workerCommand(dirPath string) scheduler.CommandFactory {
	if abs, err := filepath.Abs(dirPath); err == nil && dirPath != "" {
		dirPath = abs
	}
	return func(ctx context.Context) *exec.Cmd {
		exe, err := os.Executable()
		if err != nil {
			exe = os.Args[0]
		}
		args := []string{fetchWorkerCmd.Name()}
		if configPath != "" {
			args = append(args, "--config", configPath)
		}
		cmd := exec.CommandContext(ctx, exe, args...)
		cmd.Env = os.Environ()
		if dirPath != "" {
			cmd.Env = append(cmd.Env, "RATIOFETCH_DIRECTORY_PATH="+dirPath)
		}
		return cmd
	}
}
