// Package config loads the tool's configuration from flags, environment
// variables, and an optional TOML file, in that order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vremyavnikuda/sysinfo-utils/internal/errors"
)

const (
	DefaultLogLevel     = "info"
	DefaultCacheTTL     = 500 * time.Millisecond
	DefaultAsyncWorkers = 4

	envPrefix    = "GPUINFO"
	configEnvVar = "GPUINFO_CONFIG"
)

type Config struct {
	LogLevel     string        `mapstructure:"log_level"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	CacheEntries int           `mapstructure:"cache_max_entries"`
	AsyncWorkers int           `mapstructure:"async_workers"`
	Telemetry    bool          `mapstructure:"telemetry"`
	TelemetryDB  string        `mapstructure:"database"`
	JSON         bool          `mapstructure:"json"`
}

func Load() (*Config, error) {
	errFactory := errors.New()

	fs := pflag.NewFlagSet("gpuinfo", pflag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.Duration("cache-ttl", DefaultCacheTTL, "How long cached snapshots stay fresh")
	fs.Int("cache-max-entries", 0, "Cache entry bound, 0 for unbounded")
	fs.Int("async-workers", DefaultAsyncWorkers, "Worker pool size for async queries")
	fs.Bool("telemetry", false, "Record observations to the telemetry database")
	fs.String("database", "", "Path to the telemetry database")
	fs.Bool("json", false, "Render output as JSON")

	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("cache_ttl", DefaultCacheTTL)
	v.SetDefault("async_workers", DefaultAsyncWorkers)

	bindings := map[string]string{
		"log_level":         "log-level",
		"cache_ttl":         "cache-ttl",
		"cache_max_entries": "cache-max-entries",
		"async_workers":     "async-workers",
		"telemetry":         "telemetry",
		"database":          "database",
		"json":              "json",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, *configPath); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readConfigFile resolves the config file from the --config flag, the
// GPUINFO_CONFIG variable, or the default search paths. A missing file
// is only an error when one was named explicitly.
func readConfigFile(v *viper.Viper, flagPath string) error {
	errFactory := errors.New()

	path := flagPath
	if path == "" {
		path = os.Getenv(configEnvVar)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName("gpuinfo")
	v.SetConfigType("toml")
	v.AddConfigPath("/etc/gpuinfo")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	errFactory := errors.New()

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.CacheTTL < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "cache_ttl must not be negative")
	}
	if c.CacheEntries < 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "cache_max_entries must not be negative")
	}
	if c.AsyncWorkers <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, "async_workers must be positive")
	}
	return nil
}
