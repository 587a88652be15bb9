package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Snapshot.Dir != ".stash" || cfg.Snapshot.File != "snapshot.json" {
		t.Fatalf("unexpected snapshot defaults: %+v", cfg.Snapshot)
	}
	if cfg.Logging.Format != "text" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if got := cfg.SnapshotPath(); got != filepath.Join(".stash", "snapshot.json") {
		t.Fatalf("unexpected snapshot path %q", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"snapshot": {"dir": "/var/lib/stash"}, "logging": {"level": "debug"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if cfg.Snapshot.Dir != "/var/lib/stash" {
		t.Fatalf("file value not applied: %q", cfg.Snapshot.Dir)
	}
	// Unset fields keep their defaults.
	if cfg.Snapshot.File != "snapshot.json" {
		t.Fatalf("default lost on partial file: %q", cfg.Snapshot.File)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("file value not applied: %q", cfg.Logging.Level)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STASH_SNAPSHOT_DIR", "/tmp/stash")
	t.Setenv("STASH_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.Snapshot.Dir != "/tmp/stash" {
		t.Fatalf("env override not applied: %q", cfg.Snapshot.Dir)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("env override not applied: %q", cfg.Logging.Level)
	}
	// Untouched fields keep their defaults.
	if cfg.Metrics.Namespace != "stash" {
		t.Fatalf("unrelated field changed: %q", cfg.Metrics.Namespace)
	}
}
