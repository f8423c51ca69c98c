package config

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"ratiofetcher/internal/cache"
	"ratiofetcher/internal/dart"
	"ratiofetcher/internal/model"
	"ratiofetcher/internal/quality"
	"ratiofetcher/internal/scheduler"
)

// DartConfig configures the upstream filings service
type DartConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	HTTPRetries       int     `mapstructure:"http_retries"`
	TimeoutSecs       int     `mapstructure:"timeout_secs"`
}

// DirectoryConfig locates the identifier directory
type DirectoryConfig struct {
	// Path is an optional JSON directory file; when empty the corp code
	// archive is downloaded.
	Path string `mapstructure:"path"`
	// Mode is auto, name or code
	Mode string `mapstructure:"mode"`
}

// FetchConfig holds the fetch parameters and the retry loop settings
type FetchConfig struct {
	DateFrom      string   `mapstructure:"date_from"`
	ReportPeriod  string   `mapstructure:"report_period"`
	Basis         string   `mapstructure:"basis"`
	LatestOnly    bool     `mapstructure:"latest_only"`
	OutputFormat  string   `mapstructure:"output_format"`
	Fields        []string `mapstructure:"fields"`
	Retries       int      `mapstructure:"retries"`
	ThrottleMs    int      `mapstructure:"throttle_ms"`
	BackoffBaseMs int      `mapstructure:"backoff_base_ms"`
}

// SchedulerConfig bounds concurrency
type SchedulerConfig struct {
	Executor           string `mapstructure:"executor"`
	MaxWorkers         int    `mapstructure:"max_workers"`
	PerItemTimeoutSecs int    `mapstructure:"per_item_timeout_secs"`
}

// QualityConfig holds the quality gate thresholds
type QualityConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	NaNRatioLimit float64 `mapstructure:"nan_ratio_limit"`
	MinFilled     int     `mapstructure:"min_filled"`
}

// CacheConfig locates both cache tiers
type CacheConfig struct {
	DurableDir  string `mapstructure:"durable_dir"`
	BlobBackend string `mapstructure:"blob_backend"`
	BlobDir     string `mapstructure:"blob_dir"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	TTLHours    int    `mapstructure:"ttl_hours"`
}

// ReportConfig locates the batch artifacts
type ReportConfig struct {
	Dir         string `mapstructure:"dir"`
	DatasetPath string `mapstructure:"dataset_path"`
}

// LogConfig configures the global logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config holds all configuration for the ratio fetcher
type Config struct {
	Dart      DartConfig      `mapstructure:"dart"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Quality   QualityConfig   `mapstructure:"quality"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Report    ReportConfig    `mapstructure:"report"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("dart.base_url", dart.DefaultBaseURL)
	v.SetDefault("dart.requests_per_second", 5)
	v.SetDefault("dart.http_retries", 1)
	v.SetDefault("dart.timeout_secs", 30)

	v.SetDefault("directory.path", "")
	v.SetDefault("directory.mode", string(model.ResolveAuto))

	v.SetDefault("fetch.date_from", "20210101")
	v.SetDefault("fetch.report_period", string(model.PeriodAnnual))
	v.SetDefault("fetch.basis", string(model.BasisStandalone))
	v.SetDefault("fetch.latest_only", false)
	v.SetDefault("fetch.output_format", string(model.FormatRaw))
	v.SetDefault("fetch.fields", []string{})
	v.SetDefault("fetch.retries", 3)
	v.SetDefault("fetch.throttle_ms", 1200)
	v.SetDefault("fetch.backoff_base_ms", 900)

	v.SetDefault("scheduler.executor", string(scheduler.ExecutorGoroutine))
	v.SetDefault("scheduler.max_workers", 4)
	v.SetDefault("scheduler.per_item_timeout_secs", 90)

	gate := quality.DefaultConfig()
	v.SetDefault("quality.enabled", gate.Enabled)
	v.SetDefault("quality.nan_ratio_limit", gate.NaNRatioLimit)
	v.SetDefault("quality.min_filled", gate.MinFilled)

	v.SetDefault("cache.durable_dir", "artifacts/by_stock")
	v.SetDefault("cache.blob_backend", string(cache.BlobBackendFile))
	v.SetDefault("cache.blob_dir", "artifacts/.blobcache")
	v.SetDefault("cache.sqlite_path", "artifacts/blobcache.db")
	v.SetDefault("cache.ttl_hours", 24)

	v.SetDefault("report.dir", "artifacts")
	v.SetDefault("report.dataset_path", "metrics_result.csv")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
// When path is empty, config.yaml is looked up in . and $HOME/.ratiofetcher.
//
// Every key can be set as RATIOFETCH_<SECTION>_<KEY>, e.g.
// RATIOFETCH_SCHEDULER_MAX_WORKERS. The API key is also read from
// DART_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RATIOFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("dart.api_key", "RATIOFETCH_DART_API_KEY", "DART_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind api key")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ratiofetcher")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	return cfg, nil
}

var placeholderKey = regexp.MustCompile(`^(%DART_API_KEY%|\$\{?DART_API_KEY\}?)$`)

// IsPlaceholderKey reports whether key is empty or an unexpanded shell
// reference to DART_API_KEY
func IsPlaceholderKey(key string) bool {
	k := strings.TrimSpace(key)
	if k == "" || placeholderKey.MatchString(k) {
		return true
	}
	return strings.Contains(k, "DART_API_KEY") && strings.ContainsAny(k, "%${}")
}

// Validate checks enum values and thresholds. requireKey additionally
// demands a usable API key, for commands that talk to the upstream.
func (c *Config) Validate(requireKey bool) error {
	var problems []string
	if requireKey && IsPlaceholderKey(c.Dart.APIKey) {
		problems = append(problems, "DART_API_KEY is missing or an unexpanded placeholder")
	}
	if _, err := c.FetchParameters(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := model.ParseResolveMode(c.Directory.Mode); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := scheduler.ParseExecutorKind(c.Scheduler.Executor); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := cache.ParseBlobBackend(c.Cache.BlobBackend); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Quality.NaNRatioLimit < 0 || c.Quality.NaNRatioLimit > 1 {
		problems = append(problems, "quality.nan_ratio_limit must be within [0, 1]")
	}
	if c.Cache.TTLHours < 0 {
		problems = append(problems, "cache.ttl_hours must not be negative")
	}
	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// FetchParameters builds and validates the parameters every fetch of a
// batch shares
func (c *Config) FetchParameters() (model.FetchParameters, error) {
	p := model.FetchParameters{
		DateFrom:     strings.TrimSpace(c.Fetch.DateFrom),
		ReportPeriod: model.ReportPeriod(strings.ToLower(c.Fetch.ReportPeriod)),
		Basis:        model.Basis(strings.ToLower(c.Fetch.Basis)),
		LatestOnly:   c.Fetch.LatestOnly,
		OutputFormat: model.OutputFormat(strings.ToLower(c.Fetch.OutputFormat)),
	}
	if len(c.Fetch.Fields) > 0 {
		p.Fields = append([]string(nil), c.Fetch.Fields...)
	}
	return p, p.Validate()
}

// ResolveMode returns the configured identifier interpretation
func (c *Config) ResolveMode() model.ResolveMode {
	m, err := model.ParseResolveMode(c.Directory.Mode)
	if err != nil {
		return model.ResolveAuto
	}
	return m
}

// Gate returns the quality gate thresholds
func (c *Config) Gate() quality.Config {
	return quality.Config{
		Enabled:       c.Quality.Enabled,
		NaNRatioLimit: c.Quality.NaNRatioLimit,
		MinFilled:     c.Quality.MinFilled,
	}
}

// TTL returns the blob cache time-to-live
func (c *Config) TTL() time.Duration {
	return time.Duration(c.Cache.TTLHours) * time.Hour
}

// PerItemTimeout returns the scheduler's per-item budget
func (c *Config) PerItemTimeout() time.Duration {
	return time.Duration(c.Scheduler.PerItemTimeoutSecs) * time.Second
}
