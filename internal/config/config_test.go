package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ratiofetcher/internal/cache"
	"ratiofetcher/internal/model"
)

// isolate moves into an empty directory so no config.yaml is picked up and
// clears the API key variables inherited from the environment.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DART_API_KEY", "")
	t.Setenv("RATIOFETCH_DART_API_KEY", "")
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://opendart.fss.or.kr/api", cfg.Dart.BaseURL)
	assert.Equal(t, 5.0, cfg.Dart.RequestsPerSecond)
	assert.Equal(t, "20210101", cfg.Fetch.DateFrom)
	assert.Equal(t, 3, cfg.Fetch.Retries)
	assert.Equal(t, 1200, cfg.Fetch.ThrottleMs)
	assert.Equal(t, 900, cfg.Fetch.BackoffBaseMs)
	assert.Equal(t, "goroutine", cfg.Scheduler.Executor)
	assert.Equal(t, 4, cfg.Scheduler.MaxWorkers)
	assert.Equal(t, 90*time.Second, cfg.PerItemTimeout())
	assert.True(t, cfg.Quality.Enabled)
	assert.Equal(t, 0.60, cfg.Quality.NaNRatioLimit)
	assert.Equal(t, 5, cfg.Quality.MinFilled)
	assert.Equal(t, "artifacts/by_stock", cfg.Cache.DurableDir)
	assert.Equal(t, 24*time.Hour, cfg.TTL())
	assert.Equal(t, "metrics_result.csv", cfg.Report.DatasetPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, model.ResolveAuto, cfg.ResolveMode())

	params, err := cfg.FetchParameters()
	require.NoError(t, err)
	assert.Equal(t, model.PeriodAnnual, params.ReportPeriod)
	assert.Equal(t, model.BasisStandalone, params.Basis)
	assert.Equal(t, model.FormatRaw, params.OutputFormat)
	assert.Empty(t, params.Fields)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("DART_API_KEY", "test_dart_key")
	t.Setenv("RATIOFETCH_SCHEDULER_MAX_WORKERS", "8")
	t.Setenv("RATIOFETCH_FETCH_BASIS", "consolidated")
	t.Setenv("RATIOFETCH_CACHE_BLOB_BACKEND", "sqlite")
	t.Setenv("RATIOFETCH_QUALITY_NAN_RATIO_LIMIT", "0.4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "test_dart_key", cfg.Dart.APIKey)
	assert.Equal(t, 8, cfg.Scheduler.MaxWorkers)
	assert.Equal(t, "consolidated", cfg.Fetch.Basis)
	assert.Equal(t, string(cache.BlobBackendSQLite), cfg.Cache.BlobBackend)
	assert.Equal(t, 0.4, cfg.Gate().NaNRatioLimit)
	assert.NoError(t, cfg.Validate(true))
}

func TestLoad_ConfigFile(t *testing.T) {
	isolate(t)
	body := `
dart:
  api_key: file_key
fetch:
  report_period: quarter
  latest_only: true
  output_format: percent
  fields: [roe, roa]
cache:
  ttl_hours: 0
`
	require.NoError(t, os.WriteFile("config.yaml", []byte(body), 0o600))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file_key", cfg.Dart.APIKey)
	assert.Zero(t, cfg.TTL())

	params, err := cfg.FetchParameters()
	require.NoError(t, err)
	assert.Equal(t, model.PeriodQuarter, params.ReportPeriod)
	assert.True(t, params.LatestOnly)
	assert.Equal(t, model.FormatPercent, params.OutputFormat)
	assert.Equal(t, []string{"roe", "roa"}, params.Fields)
}

func TestLoad_EnvironmentBeatsFile(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("config.yaml", []byte("dart:\n  api_key: file_key\n"), 0o600))
	t.Setenv("DART_API_KEY", "env_key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env_key", cfg.Dart.APIKey)
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestIsPlaceholderKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"", true},
		{"   ", true},
		{"%DART_API_KEY%", true},
		{"$DART_API_KEY", true},
		{"${DART_API_KEY}", true},
		{"key=${DART_API_KEY", true},
		{"DART_API_KEY", false},
		{"0123456789abcdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPlaceholderKey(tt.key))
		})
	}
}

func TestValidate(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.NoError(t, cfg.Validate(false), "commands without upstream access need no key")

	err = cfg.Validate(true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DART_API_KEY")

	cfg.Dart.APIKey = "real_key"
	require.NoError(t, cfg.Validate(true))

	bad := *cfg
	bad.Scheduler.Executor = "threads"
	assert.ErrorContains(t, bad.Validate(true), "executor")

	bad = *cfg
	bad.Fetch.Basis = "group"
	assert.ErrorContains(t, bad.Validate(true), "basis")

	bad = *cfg
	bad.Cache.BlobBackend = "redis"
	assert.Error(t, bad.Validate(true))

	bad = *cfg
	bad.Quality.NaNRatioLimit = 1.5
	assert.ErrorContains(t, bad.Validate(true), "nan_ratio_limit")

	bad = *cfg
	bad.Directory.Mode = "isin"
	assert.Error(t, bad.Validate(true))
}

func TestInitLogger(t *testing.T) {
	original := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(original) })

	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
