package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete swarm configuration
type Config struct {
	Paths      PathsConfig      `mapstructure:"paths"`
	Session    SessionConfig    `mapstructure:"session"`
	Bundle     BundleConfig     `mapstructure:"bundle"`
	AutoResume AutoResumeConfig `mapstructure:"autoresume"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PathsConfig controls where swarm stores its state
type PathsConfig struct {
	// StateDir is the root directory for all persisted state
	// (sessions, bundles, manifest, alerts, logs). Default: ".swarm"
	StateDir string `mapstructure:"state_dir"`
}

// SessionConfig controls session behavior
type SessionConfig struct {
	// Workspace is the directory agents write their artifacts into.
	// Empty means the current working directory.
	Workspace string `mapstructure:"workspace"`
}

// BundleConfig controls bundle/retry state behavior
type BundleConfig struct {
	// MaxRetries is the default retry ceiling for new bundles
	MaxRetries int `mapstructure:"max_retries"`
	// RetentionDays is how long terminal bundles are kept before cleanup
	RetentionDays int `mapstructure:"retention_days"`
}

// AutoResumeConfig controls the auto-resume poller
type AutoResumeConfig struct {
	// Enabled turns the poller on or off
	Enabled bool `mapstructure:"enabled"`
	// Timezone is the IANA timezone the resume windows are evaluated in
	Timezone string `mapstructure:"timezone"`
	// Windows are the daily resume windows in HH:MM format
	Windows []string `mapstructure:"windows"`
	// WindowSlackMinutes is the tolerance around each window
	WindowSlackMinutes int `mapstructure:"window_slack_minutes"`
	// UrgentAfterHours is how long a bundle may wait before it is resumed
	// regardless of windows
	UrgentAfterHours int `mapstructure:"urgent_after_hours"`
	// CommandTimeoutMinutes bounds next_cmd execution; 0 disables the timeout
	CommandTimeoutMinutes int `mapstructure:"command_timeout_minutes"`
	// LockTimeoutMs is how long a poller cycle waits for the manifest lock
	LockTimeoutMs int `mapstructure:"lock_timeout_ms"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `mapstructure:"level"`
}

// Default returns a Config populated with default values.
// The defaults mirror the workflow this tool was built around:
// resume windows at 02:00/07:00/13:00/19:00 Mexico City time, two retries,
// a five hour urgency escape valve, and week-long bundle retention.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			StateDir: ".swarm",
		},
		Session: SessionConfig{
			Workspace: "",
		},
		Bundle: BundleConfig{
			MaxRetries:    2,
			RetentionDays: 7,
		},
		AutoResume: AutoResumeConfig{
			Enabled:               true,
			Timezone:              "America/Mexico_City",
			Windows:               []string{"02:00", "07:00", "13:00", "19:00"},
			WindowSlackMinutes:    30,
			UrgentAfterHours:      5,
			CommandTimeoutMinutes: 30,
			LockTimeoutMs:         30000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Retention returns the bundle retention period as a duration.
func (c *BundleConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// WindowSlack returns the window tolerance as a duration.
func (c *AutoResumeConfig) WindowSlack() time.Duration {
	return time.Duration(c.WindowSlackMinutes) * time.Minute
}

// UrgentAfter returns the urgency threshold as a duration.
func (c *AutoResumeConfig) UrgentAfter() time.Duration {
	return time.Duration(c.UrgentAfterHours) * time.Hour
}

// CommandTimeout returns the next_cmd execution timeout as a duration.
// Zero means no timeout.
func (c *AutoResumeConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMinutes) * time.Minute
}

// LockTimeout returns the manifest lock timeout as a duration.
func (c *AutoResumeConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// SetDefaults registers all default values with viper.
// Must be called before Load so that missing config files still
// produce a complete configuration.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)

	viper.SetDefault("session.workspace", defaults.Session.Workspace)

	viper.SetDefault("bundle.max_retries", defaults.Bundle.MaxRetries)
	viper.SetDefault("bundle.retention_days", defaults.Bundle.RetentionDays)

	viper.SetDefault("autoresume.enabled", defaults.AutoResume.Enabled)
	viper.SetDefault("autoresume.timezone", defaults.AutoResume.Timezone)
	viper.SetDefault("autoresume.windows", defaults.AutoResume.Windows)
	viper.SetDefault("autoresume.window_slack_minutes", defaults.AutoResume.WindowSlackMinutes)
	viper.SetDefault("autoresume.urgent_after_hours", defaults.AutoResume.UrgentAfterHours)
	viper.SetDefault("autoresume.command_timeout_minutes", defaults.AutoResume.CommandTimeoutMinutes)
	viper.SetDefault("autoresume.lock_timeout_ms", defaults.AutoResume.LockTimeoutMs)

	viper.SetDefault("logging.level", defaults.Logging.Level)
}

// Load unmarshals the current viper state into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swarm")
	}
	// Fall back to ~/.config/swarm
	home, err := os.UserHomeDir()
	if err != nil {
		return ".swarm"
	}
	return filepath.Join(home, ".config", "swarm")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
