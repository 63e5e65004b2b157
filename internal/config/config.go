package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheConfig holds cache settings
type CacheConfig struct {
	Dir          string        `yaml:"dir"` // empty: os.UserCacheDir()/prcache
	MaxSizeBytes int64         `yaml:"max_size_bytes"`
	MaxAge       time.Duration `yaml:"max_age"`
	Compression  string        `yaml:"compression"` // none, s2, zstd, lz4
}

// SchedulerConfig holds scheduler settings
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RefreshJob is one endpoint kept warm in the cache
type RefreshJob struct {
	Key string        `yaml:"key"`
	URL string        `yaml:"url"`
	TTL time.Duration `yaml:"ttl"`
}

// RefreshConfig holds background refresh settings
type RefreshConfig struct {
	Every   time.Duration `yaml:"every"`
	Timeout time.Duration `yaml:"timeout"`
	Token   string        `yaml:"token"`
	Jobs    []RefreshJob  `yaml:"jobs"`
}

// ServerConfig holds the introspection server settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Cache     CacheConfig     `yaml:"cache"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Refresh   RefreshConfig   `yaml:"refresh"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{
			MaxSizeBytes: 100 << 20,
			MaxAge:       7 * 24 * time.Hour,
			Compression:  "none",
		},
		Scheduler: SchedulerConfig{
			Interval: time.Second,
		},
		Refresh: RefreshConfig{
			Every:   5 * time.Minute,
			Timeout: 30 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8765",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a YAML file. Fields absent from the
// file keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Cache.MaxSizeBytes < 0 {
		return fmt.Errorf("cache.max_size_bytes must not be negative: %d", c.Cache.MaxSizeBytes)
	}
	if c.Cache.MaxAge < 0 {
		return fmt.Errorf("cache.max_age must not be negative: %s", c.Cache.MaxAge)
	}
	if c.Scheduler.Interval < 0 {
		return fmt.Errorf("scheduler.interval must not be negative: %s", c.Scheduler.Interval)
	}
	for i, j := range c.Refresh.Jobs {
		if j.Key == "" || j.URL == "" {
			return fmt.Errorf("refresh.jobs[%d]: key and url are required", i)
		}
	}
	return nil
}

// LoadFromEnv applies environment variable overrides to the config.
// Unparseable numeric values are ignored.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PRCACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("PRCACHE_MAX_SIZE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Cache.MaxSizeBytes = n
		}
	}
	if v := os.Getenv("PRCACHE_MAX_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.MaxAge = d
		}
	}
	if v := os.Getenv("PRCACHE_COMPRESSION"); v != "" {
		cfg.Cache.Compression = v
	}
	if v := os.Getenv("PRCACHE_SCHEDULER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.Interval = d
		}
	}
	if v := os.Getenv("PRCACHE_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PRCACHE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PRCACHE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" && cfg.Refresh.Token == "" {
		cfg.Refresh.Token = v
	}
	if v := os.Getenv("PRCACHE_TOKEN"); v != "" {
		cfg.Refresh.Token = v
	}
}
