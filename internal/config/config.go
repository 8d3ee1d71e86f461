// Package config loads and validates collector configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	collyfetcher "github.com/JakeFAU/appcatalog/internal/fetcher/colly"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Lookup  LookupConfig  `mapstructure:"lookup"`
	Enrich  EnrichConfig  `mapstructure:"enrich"`
	Output  OutputConfig  `mapstructure:"output"`
	DB      DBConfig      `mapstructure:"db"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// FeedConfig controls ranked-feed requests.
type FeedConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	TimeoutSeconds int           `mapstructure:"timeout_seconds"`
	PageLimit      int           `mapstructure:"page_limit"`
	MinDelay       time.Duration `mapstructure:"min_delay"`
	MaxDelay       time.Duration `mapstructure:"max_delay"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// LookupConfig controls seller lookups and association probes.
type LookupConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	TimeoutSeconds    int           `mapstructure:"timeout_seconds"`
	MinDelay          time.Duration `mapstructure:"min_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	AssociationScheme string        `mapstructure:"association_scheme"`
	AssociationRPS    float64       `mapstructure:"association_rps"`
	AssociationBurst  int           `mapstructure:"association_burst"`
	UserAgent         string        `mapstructure:"user_agent"`
}

// EnrichConfig sizes the worker pool.
type EnrichConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// OutputConfig sets where catalog files live.
type OutputConfig struct {
	Root string `mapstructure:"root"`
}

// DBConfig controls the optional Postgres export. An empty DSN disables it.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// MetricsConfig controls the status server. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("APPCATALOG")
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
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("feed.base_url", "https://itunes.apple.com")
	v.SetDefault("feed.timeout_seconds", 30)
	v.SetDefault("feed.page_limit", 100)
	v.SetDefault("feed.min_delay", "2s")
	v.SetDefault("feed.max_delay", "7s")
	v.SetDefault("feed.user_agent", "appcatalog/0.1")
	v.SetDefault("lookup.base_url", "https://itunes.apple.com")
	v.SetDefault("lookup.timeout_seconds", 30)
	v.SetDefault("lookup.min_delay", "3s")
	v.SetDefault("lookup.max_delay", "5s")
	v.SetDefault("lookup.association_scheme", "https")
	v.SetDefault("lookup.association_rps", 0)
	v.SetDefault("lookup.association_burst", 1)
	v.SetDefault("lookup.user_agent", "appcatalog/0.1")
	v.SetDefault("enrich.workers", 5)
	v.SetDefault("enrich.queue_depth", 10)
	v.SetDefault("output.root", "data")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "app_catalog")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := validateBaseURL("feed.base_url", c.Feed.BaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("lookup.base_url", c.Lookup.BaseURL); err != nil {
		return err
	}
	if c.Feed.TimeoutSeconds <= 0 {
		return fmt.Errorf("feed.timeout_seconds must be > 0")
	}
	if c.Lookup.TimeoutSeconds <= 0 {
		return fmt.Errorf("lookup.timeout_seconds must be > 0")
	}
	if c.Feed.PageLimit <= 0 {
		return fmt.Errorf("feed.page_limit must be > 0")
	}
	if c.Feed.MinDelay < 0 || c.Feed.MaxDelay < c.Feed.MinDelay {
		return fmt.Errorf("feed delay range [%s, %s] is invalid", c.Feed.MinDelay, c.Feed.MaxDelay)
	}
	if c.Lookup.MinDelay < 0 || c.Lookup.MaxDelay < c.Lookup.MinDelay {
		return fmt.Errorf("lookup delay range [%s, %s] is invalid", c.Lookup.MinDelay, c.Lookup.MaxDelay)
	}
	switch c.Lookup.AssociationScheme {
	case "http", "https":
	default:
		return fmt.Errorf("lookup.association_scheme must be http or https")
	}
	if c.Lookup.AssociationRPS < 0 {
		return fmt.Errorf("lookup.association_rps must be >= 0")
	}
	if c.Enrich.Workers <= 0 {
		return fmt.Errorf("enrich.workers must be > 0")
	}
	if c.Enrich.QueueDepth < 0 {
		return fmt.Errorf("enrich.queue_depth must be >= 0")
	}
	if strings.TrimSpace(c.Output.Root) == "" {
		return fmt.Errorf("output.root is required")
	}
	return nil
}

// FeedTimeout converts the feed timeout into a duration.
func (c Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutSeconds) * time.Second
}

// FeedFetcher returns the HTTP settings for feed requests.
func (c Config) FeedFetcher() collyfetcher.Config {
	return collyfetcher.Config{UserAgent: c.Feed.UserAgent, Timeout: c.FeedTimeout()}
}

// LookupFetcher returns the HTTP settings for seller lookups and association requests.
func (c Config) LookupFetcher() collyfetcher.Config {
	return collyfetcher.Config{UserAgent: c.Lookup.UserAgent, Timeout: c.LookupTimeout()}
}

// LookupTimeout converts the lookup timeout into a duration.
func (c Config) LookupTimeout() time.Duration {
	return time.Duration(c.Lookup.TimeoutSeconds) * time.Second
}

func validateBaseURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL", key)
	}
	return nil
}
