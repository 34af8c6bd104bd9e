package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the YAML profile loaded from --config (or the default
// location). Flags override config values; config values override the
// built-in defaults.
type Config struct {
	// Database is the SQLite database path.
	Database string `yaml:"database"`

	// BaseURL is the remote API base, e.g. "https://api.example.net".
	BaseURL string `yaml:"base_url"`

	// Token is the bearer token for remote calls.
	Token string `yaml:"token"`

	// UserID is the identity to bind on startup.
	UserID string `yaml:"user_id"`

	// LogLevel is one of debug, info, warn, error. Default info.
	LogLevel string `yaml:"log_level"`

	// SyncSchedule is the cron expression the daemon runs cycles on.
	// Default "@every 1m".
	SyncSchedule string `yaml:"sync_schedule"`
}

// DefaultConfigPath returns the conventional profile location under
// the user config directory, or "" when it cannot be resolved.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "undertow", "config.yaml")
}

// LoadConfig reads a YAML profile. A missing file at the default path
// yields zero-value config without error; an explicitly given path
// must exist.
func LoadConfig(path string, explicit bool) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyDefaults fills unset fields with built-in defaults.
func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "undertow.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SyncSchedule == "" {
		c.SyncSchedule = "@every 1m"
	}
}
