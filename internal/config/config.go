// Package config loads server settings from a YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	// Timezone data for hosts without a zoneinfo database.
	_ "time/tzdata"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Lunar   LunarConfig   `yaml:"lunar"`
	Feed    FeedConfig    `yaml:"feed"`
	Debug   bool          `yaml:"debug"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	StaticDir       string `yaml:"static_dir"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	IdleTimeout     string `yaml:"idle_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// StorageConfig configures the SQLite database location.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	DBName  string `yaml:"db_name"`
}

// LunarConfig configures the lunar engine defaults.
type LunarConfig struct {
	// Timezone is the IANA zone used for day boundaries.
	Timezone        string `yaml:"timezone"`
	RefreshSpec     string `yaml:"refresh_spec"`
	MaxResults      int    `yaml:"max_results"`
	HorizonDays     int    `yaml:"horizon_days"`
	DefaultLanguage string `yaml:"default_language"`
}

// FeedConfig configures the ICS feed.
type FeedConfig struct {
	Months          int    `yaml:"months"`
	RebuildInterval string `yaml:"rebuild_interval"`
	ProductID       string `yaml:"product_id"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8099",
			StaticDir:       "./static",
			ReadTimeout:     "15s",
			WriteTimeout:    "15s",
			IdleTimeout:     "60s",
			ShutdownTimeout: "30s",
		},
		Storage: StorageConfig{
			DataDir: "/data",
			DBName:  "amatlan.db",
		},
		Lunar: LunarConfig{
			Timezone:        "America/Mexico_City",
			RefreshSpec:     "@every 1m",
			MaxResults:      4,
			HorizonDays:     60,
			DefaultLanguage: "en",
		},
		Feed: FeedConfig{
			Months:          6,
			RebuildInterval: "1h",
			ProductID:       "-//Magic Amatlan//Lunar Calendar//EN",
		},
	}
}

// Load reads the YAML file at path over the defaults and then applies
// environment overrides. A missing file or empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Addr = getEnv("AMATLAN_ADDR", c.Server.Addr)
	c.Server.StaticDir = getEnv("AMATLAN_STATIC_DIR", c.Server.StaticDir)
	c.Storage.DataDir = getEnv("AMATLAN_DATA_DIR", c.Storage.DataDir)
	c.Lunar.Timezone = getEnv("AMATLAN_TIMEZONE", c.Lunar.Timezone)
	c.Lunar.RefreshSpec = getEnv("AMATLAN_REFRESH_SPEC", c.Lunar.RefreshSpec)
	c.Lunar.DefaultLanguage = getEnv("AMATLAN_LANG", c.Lunar.DefaultLanguage)

	if v, err := strconv.ParseBool(getEnv("AMATLAN_DEBUG", "")); err == nil {
		c.Debug = v
	}
}

// getEnv returns an environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	for name, value := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"feed.rebuild_interval":   c.Feed.RebuildInterval,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if _, err := time.LoadLocation(c.Lunar.Timezone); err != nil {
		return fmt.Errorf("invalid lunar.timezone %q: %w", c.Lunar.Timezone, err)
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Lunar.RefreshSpec); err != nil {
		return fmt.Errorf("invalid lunar.refresh_spec %q: %w", c.Lunar.RefreshSpec, err)
	}
	if c.Lunar.MaxResults <= 0 {
		return fmt.Errorf("lunar.max_results must be positive")
	}
	if c.Lunar.HorizonDays <= 0 {
		return fmt.Errorf("lunar.horizon_days must be positive")
	}
	if c.Feed.Months <= 0 {
		return fmt.Errorf("feed.months must be positive")
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Lunar.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DBPath is the SQLite database file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.Storage.DataDir, c.Storage.DBName)
}

// ReadTimeout returns the parsed server read timeout.
func (c *Config) ReadTimeout() time.Duration { return parseDuration(c.Server.ReadTimeout, 15*time.Second) }

// WriteTimeout returns the parsed server write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return parseDuration(c.Server.WriteTimeout, 15*time.Second)
}

// IdleTimeout returns the parsed server idle timeout.
func (c *Config) IdleTimeout() time.Duration { return parseDuration(c.Server.IdleTimeout, 60*time.Second) }

// ShutdownTimeout returns the parsed graceful shutdown timeout.
func (c *Config) ShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 30*time.Second)
}

// RebuildInterval returns the parsed feed rebuild interval.
func (c *Config) RebuildInterval() time.Duration {
	return parseDuration(c.Feed.RebuildInterval, time.Hour)
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
