package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete plugspan configuration
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Shutdown  ShutdownConfig  `mapstructure:"shutdown"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Countdown CountdownConfig `mapstructure:"countdown"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is the minimum log level: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level"`
	// File is the log file path; empty logs to stderr
	File string `mapstructure:"file"`
}

// ShutdownConfig controls the termination path
type ShutdownConfig struct {
	// GraceMs bounds how long shutdown waits for tasks to acknowledge
	// cancellation and for teardowns to run. Zero means wait forever.
	GraceMs int `mapstructure:"grace_ms"`
}

// RegistryConfig controls the shared task scheduler
type RegistryConfig struct {
	// PoolSize is the goroutine pool capacity for scheduled tasks.
	// It must be at least the number of plugins that yield tasks.
	PoolSize int `mapstructure:"pool_size"`
}

// CountdownConfig holds defaults for the countdown plugin
type CountdownConfig struct {
	// From is the number the countdown starts at
	From int `mapstructure:"from"`
	// SleepMs is the delay between counts in milliseconds
	SleepMs int `mapstructure:"sleep_ms"`
}

// WatchConfig holds defaults for the watch plugin
type WatchConfig struct {
	// Glob filters watched paths; empty matches everything
	Glob string `mapstructure:"glob"`
}

// Grace returns the shutdown grace period as a duration.
// Zero means no bound.
func (s *ShutdownConfig) Grace() time.Duration {
	return time.Duration(s.GraceMs) * time.Millisecond
}

// Sleep returns the countdown delay as a duration.
func (c *CountdownConfig) Sleep() time.Duration {
	return time.Duration(c.SleepMs) * time.Millisecond
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "INFO",
			File:  "",
		},
		Shutdown: ShutdownConfig{
			GraceMs: 0,
		},
		Registry: RegistryConfig{
			PoolSize: 16,
		},
		Countdown: CountdownConfig{
			From:    3,
			SleepMs: 1000,
		},
		Watch: WatchConfig{
			Glob: "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.file", defaults.Logging.File)

	// Shutdown defaults
	viper.SetDefault("shutdown.grace_ms", defaults.Shutdown.GraceMs)

	// Registry defaults
	viper.SetDefault("registry.pool_size", defaults.Registry.PoolSize)

	// Plugin defaults
	viper.SetDefault("countdown.from", defaults.Countdown.From)
	viper.SetDefault("countdown.sleep_ms", defaults.Countdown.SleepMs)
	viper.SetDefault("watch.glob", defaults.Watch.Glob)
}

// Load reads the configuration from viper into a Config struct
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// Validate checks the configuration for invalid values and returns a
// description of each problem found.
func (c *Config) Validate() []string {
	var errs []string

	levelOK := false
	for _, lv := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		if strings.EqualFold(c.Logging.Level, lv) {
			levelOK = true
			break
		}
	}
	if !levelOK {
		errs = append(errs, fmt.Sprintf("logging.level must be one of DEBUG, INFO, WARN, ERROR (got %q)", c.Logging.Level))
	}

	if c.Shutdown.GraceMs < 0 {
		errs = append(errs, fmt.Sprintf("shutdown.grace_ms must be >= 0 (got %d)", c.Shutdown.GraceMs))
	}
	if c.Registry.PoolSize < 1 {
		errs = append(errs, fmt.Sprintf("registry.pool_size must be >= 1 (got %d)", c.Registry.PoolSize))
	}
	if c.Countdown.From < 1 {
		errs = append(errs, fmt.Sprintf("countdown.from must be >= 1 (got %d)", c.Countdown.From))
	}
	if c.Countdown.SleepMs < 1 {
		errs = append(errs, fmt.Sprintf("countdown.sleep_ms must be >= 1 (got %d)", c.Countdown.SleepMs))
	}

	return errs
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "plugspan")
	}
	// Fall back to ~/.config/plugspan
	home, err := os.UserHomeDir()
	if err != nil {
		return ".plugspan"
	}
	return filepath.Join(home, ".config", "plugspan")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
