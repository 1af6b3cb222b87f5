// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Run      RunConfig      `mapstructure:"run"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Index    IndexConfig    `mapstructure:"index"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// SourceConfig identifies the publication site being harvested.
type SourceConfig struct {
	ListingURL string `mapstructure:"listing_url"`
	BaseURL    string `mapstructure:"base_url"`
}

// HTTPConfig configures the plain-HTTP fetch tier.
type HTTPConfig struct {
	ConnectTimeoutSeconds int   `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int   `mapstructure:"read_timeout_seconds"`
	MaxAttempts           int   `mapstructure:"max_attempts"`
	BackoffBaseMs         int   `mapstructure:"backoff_base_ms"`
	BackoffMaxMs          int   `mapstructure:"backoff_max_ms"`
	RetryStatuses         []int `mapstructure:"retry_statuses"`
	JitterMinMs           int   `mapstructure:"jitter_min_ms"`
	JitterMaxMs           int   `mapstructure:"jitter_max_ms"`
}

// HeadlessConfig configures the browser fallback tier.
type HeadlessConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	NavTimeoutSeconds int  `mapstructure:"nav_timeout_seconds"`
	WindowWidth       int  `mapstructure:"window_width"`
	WindowHeight      int  `mapstructure:"window_height"`
}

// RunConfig sets the global run budget and pacing.
type RunConfig struct {
	BudgetSeconds       int `mapstructure:"budget_seconds"`
	AttemptPauseSeconds int `mapstructure:"attempt_pause_seconds"`
}

// StorageConfig selects and parameterizes the durable object store.
type StorageConfig struct {
	Provider      string `mapstructure:"provider"`
	GCSBucket     string `mapstructure:"gcs_bucket"`
	LocalDir      string `mapstructure:"local_dir"`
	ArchivePrefix string `mapstructure:"archive_prefix"`
	MarkerPath    string `mapstructure:"marker_path"`
}

// IndexConfig controls the static archive index page.
type IndexConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	OutputPath    string `mapstructure:"output_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	Title         string `mapstructure:"title"`
	PageSize      int    `mapstructure:"page_size"`
}

// NotifyConfig selects the notification sink.
type NotifyConfig struct {
	Provider string       `mapstructure:"provider"`
	SMTP     SMTPConfig   `mapstructure:"smtp"`
	PubSub   PubSubConfig `mapstructure:"pubsub"`
}

// SMTPConfig carries mail relay settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// PubSubConfig identifies the notification topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LedgerConfig enables the Postgres run ledger when a DSN is set.
type LedgerConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MetricsConfig enables the ops server when an address is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.listing_url", "https://mymarketnews.ams.usda.gov/filerepo/reports?field_slug_id_value=3661&page=0")
	v.SetDefault("source.base_url", "https://mymarketnews.ams.usda.gov")

	v.SetDefault("http.connect_timeout_seconds", 10)
	v.SetDefault("http.read_timeout_seconds", 30)
	v.SetDefault("http.max_attempts", 4)
	v.SetDefault("http.backoff_base_ms", 500)
	v.SetDefault("http.backoff_max_ms", 8000)
	v.SetDefault("http.retry_statuses", []int{429, 500, 502, 503, 504})
	v.SetDefault("http.jitter_min_ms", 400)
	v.SetDefault("http.jitter_max_ms", 2200)

	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.window_width", 1920)
	v.SetDefault("headless.window_height", 1080)

	v.SetDefault("run.budget_seconds", 300)
	v.SetDefault("run.attempt_pause_seconds", 3)

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local_dir", "data/archive")
	v.SetDefault("storage.archive_prefix", "Market News/USDA Weekly Reports/")
	v.SetDefault("storage.marker_path", "Market News/USDA Weekly Reports/latest_seen.txt")

	v.SetDefault("index.enabled", true)
	v.SetDefault("index.output_path", "Market News/MMN_LIST.html")
	v.SetDefault("index.title", "USDA Weekly Reports")
	v.SetDefault("index.page_size", 20)

	v.SetDefault("notify.provider", "none")
	v.SetDefault("notify.smtp.port", 587)

	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.ListingURL == "" {
		return fmt.Errorf("source.listing_url must be set")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	if c.Run.BudgetSeconds <= 0 {
		return fmt.Errorf("run.budget_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts <= 0 {
		return fmt.Errorf("http.max_attempts must be > 0")
	}
	if c.HTTP.JitterMaxMs < c.HTTP.JitterMinMs {
		return fmt.Errorf("http.jitter_max_ms must be >= http.jitter_min_ms")
	}
	switch c.Storage.Provider {
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set when provider is gcs")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set when provider is local")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage provider: %s", c.Storage.Provider)
	}
	switch c.Notify.Provider {
	case "none":
	case "smtp":
		if c.Notify.SMTP.Host == "" || c.Notify.SMTP.From == "" || c.Notify.SMTP.To == "" {
			return fmt.Errorf("notify.smtp.host, from, and to must be set when provider is smtp")
		}
	case "pubsub":
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicID == "" {
			return fmt.Errorf("notify.pubsub.project_id and topic_id must be set when provider is pubsub")
		}
	default:
		return fmt.Errorf("unknown notify provider: %s", c.Notify.Provider)
	}
	return nil
}

// Budget converts the configured run budget into a duration.
func (c Config) Budget() time.Duration {
	return time.Duration(c.Run.BudgetSeconds) * time.Second
}
