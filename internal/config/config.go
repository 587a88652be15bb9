package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SnapshotConfig holds snapshot file location settings
type SnapshotConfig struct {
	Dir  string `json:"dir"`
	File string `json:"file"`
}

// LoggingConfig holds operational logging settings
type LoggingConfig struct {
	Format string `json:"format"` // "text" or "json"
	Level  string `json:"level"`
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Namespace string `json:"namespace"`
}

// Config is the central configuration struct embedding all component configs
type Config struct {
	Snapshot SnapshotConfig `json:"snapshot"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Snapshot: SnapshotConfig{
			Dir:  ".stash",
			File: "snapshot.json",
		},
		Logging: LoggingConfig{
			Format: "text",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Namespace: "stash",
		},
	}
}

// SnapshotPath returns the resolved snapshot file location.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.Snapshot.Dir, c.Snapshot.File)
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("STASH_SNAPSHOT_DIR"); v != "" {
		cfg.Snapshot.Dir = v
	}
	if v := os.Getenv("STASH_SNAPSHOT_FILE"); v != "" {
		cfg.Snapshot.File = v
	}
	if v := os.Getenv("STASH_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("STASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("STASH_METRICS_NAMESPACE"); v != "" {
		cfg.Metrics.Namespace = v
	}
}
