package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Feed    FeedConfig    `yaml:"feed"`
	Sweep   SweepConfig   `yaml:"sweep"`
	Outbox  OutboxConfig  `yaml:"outbox"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds remote API client settings.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// FeedConfig holds orchestrator cache and rate settings.
type FeedConfig struct {
	// Freshness is the soft-refresh cache window, e.g. "30s".
	Freshness string  `yaml:"freshness"`
	RPS       float64 `yaml:"rps"`
	Burst     int     `yaml:"burst"`
}

// SweepConfig holds configuration for the freshness-cache sweeper.
type SweepConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// OutboxConfig holds the durable failed-send journal settings.
type OutboxConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Defaults applied when neither file nor env provide a value.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultFreshness = 30 * time.Second
	DefaultRPS       = 2.0
	DefaultBurst     = 5
	DefaultSweepCron = "*/1 * * * *"
)

// Load reads configuration with the merge order: defaults, then the yaml
// file at path (optional, empty path skips it), then FEEDSTORE_* env vars.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Feed.RPS = DefaultRPS
	cfg.Feed.Burst = DefaultBurst
	cfg.Sweep.Cron = DefaultSweepCron

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FEEDSTORE_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("FEEDSTORE_API_TIMEOUT"); v != "" {
		cfg.API.Timeout = v
	}
	if v := os.Getenv("FEEDSTORE_FEED_FRESHNESS"); v != "" {
		cfg.Feed.Freshness = v
	}
	if v := os.Getenv("FEEDSTORE_FEED_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Feed.RPS = f
		}
	}
	if v := os.Getenv("FEEDSTORE_FEED_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Feed.Burst = n
		}
	}
	if v := os.Getenv("FEEDSTORE_SWEEP_ENABLED"); v != "" {
		cfg.Sweep.Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("FEEDSTORE_SWEEP_CRON"); v != "" {
		cfg.Sweep.Cron = v
	}
	if v := os.Getenv("FEEDSTORE_OUTBOX_PATH"); v != "" {
		cfg.Outbox.Path = v
	}
	if v := os.Getenv("FEEDSTORE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// TimeoutDuration parses API.Timeout, falling back to the default.
func (c *Config) TimeoutDuration() time.Duration {
	return parseDuration(c.API.Timeout, DefaultTimeout)
}

// FreshnessDuration parses Feed.Freshness, falling back to the default.
func (c *Config) FreshnessDuration() time.Duration {
	return parseDuration(c.Feed.Freshness, DefaultFreshness)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
