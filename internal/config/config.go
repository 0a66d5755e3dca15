package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"eventmap/internal/recur"
)

// NOTE: The YAML file is the source of truth; every scalar can be
// overridden by an EVENTMAP_* environment variable. A missing file is
// created on first run with 0600 permissions.

const (
	DefaultEventsURL = "https://my.vatsim.net/api/v2/events/latest"
	DefaultDataURL   = "https://data.vatsim.net/v3/vatsim-data.json"
)

// FeedConfig describes the upstream feeds.
type FeedConfig struct {
	EventsURL string        `yaml:"events_url" json:"events_url" env:"EVENTMAP_FEED_EVENTS_URL"`
	DataURL   string        `yaml:"data_url" json:"data_url" env:"EVENTMAP_FEED_DATA_URL"`
	UserAgent string        `yaml:"user_agent" json:"user_agent" env:"EVENTMAP_FEED_USER_AGENT"`
	Timeout   time.Duration `yaml:"timeout" json:"timeout" env:"EVENTMAP_FEED_TIMEOUT"`
}

// LogConfig controls log level and optional rotating file output.
type LogConfig struct {
	Level      string `yaml:"level" json:"level" env:"EVENTMAP_LOG_LEVEL"`
	File       string `yaml:"file,omitempty" json:"file,omitempty" env:"EVENTMAP_LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty" env:"EVENTMAP_LOG_MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty" env:"EVENTMAP_LOG_MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty" env:"EVENTMAP_LOG_MAX_AGE_DAYS"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API. Auth is
// enabled only when both fields are set.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" env:"EVENTMAP_BASIC_AUTH_USERNAME"`
	Password string `yaml:"password" json:"-" env:"EVENTMAP_BASIC_AUTH_PASSWORD"`
}

// Enabled reports whether both credentials are present.
func (b BasicAuthConfig) Enabled() bool {
	return b.Username != "" && b.Password != ""
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" env:"EVENTMAP_LISTEN"`

	// Timezone is the IANA zone whose calendar days define the day buckets.
	Timezone string `yaml:"timezone" json:"timezone" env:"EVENTMAP_TIMEZONE"`

	// RefreshCron schedules the event feed refresh.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"EVENTMAP_REFRESH"`

	// TrafficCron schedules the live network refresh. Empty disables it.
	TrafficCron string `yaml:"traffic_refresh" json:"traffic_refresh" env:"EVENTMAP_TRAFFIC_REFRESH"`

	Feed FeedConfig `yaml:"feed" json:"feed"`

	// AirportsPath points at the airport table (CSV or JSON).
	AirportsPath string `yaml:"airports_path" json:"airports_path" env:"EVENTMAP_AIRPORTS_PATH"`

	// Recurring lists the recurring events that the feed does not publish.
	Recurring []recur.Template `yaml:"recurring" json:"recurring"`

	Log LogConfig `yaml:"log" json:"log"`

	BasicAuth BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/5 * * * *"
	}
	if c.TrafficCron == "" {
		c.TrafficCron = "@every 15s"
	}
	if c.Feed.EventsURL == "" {
		c.Feed.EventsURL = DefaultEventsURL
	}
	if c.Feed.DataURL == "" {
		c.Feed.DataURL = DefaultDataURL
	}
	if c.Feed.UserAgent == "" {
		c.Feed.UserAgent = "eventmap/1.0"
	}
	if c.Feed.Timeout <= 0 {
		c.Feed.Timeout = 15 * time.Second
	}
	if c.AirportsPath == "" {
		c.AirportsPath = "airports.csv"
	}
	// nil means "not configured"; an explicit empty list disables them.
	if c.Recurring == nil {
		c.Recurring = recur.Defaults()
	}
	if c.Log.Level == "" {
		c.Log.Level = "INFO"
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned (environment overrides still apply).
//   - Otherwise the file is read through cleanenv, which applies
//     EVENTMAP_* overrides, and the result is normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		// First run: create default config file.
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
		cfg.Normalize()
		return cfg, nil
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventmap-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
