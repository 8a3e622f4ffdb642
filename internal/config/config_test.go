package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)

	if cfg.Server.Port != 8700 {
		t.Errorf("expected default port 8700, got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 512 {
		t.Errorf("expected default dimensions 512, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.Provider != "mock" {
		t.Errorf("expected default provider mock, got %q", cfg.Embedding.Provider)
	}
	if cfg.Index.Metric != "l2" {
		t.Errorf("expected default metric l2, got %q", cfg.Index.Metric)
	}
	if cfg.Flush.MaxPending != 32 {
		t.Errorf("expected default max_pending 32, got %d", cfg.Flush.MaxPending)
	}
	if cfg.Flush.Interval() != 5*time.Second {
		t.Errorf("expected default interval 5s, got %s", cfg.Flush.Interval())
	}
	if len(cfg.Watch.Extensions) == 0 {
		t.Error("expected default watch extensions")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: 0.0.0.0
  port: 9000
storage:
  database_path: ./data/photos.db
embedding:
  provider: openai
  dimensions: 1536
flush:
  max_pending: 1
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if !cfg.Debug {
		t.Error("expected debug true")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("expected dimensions 1536, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Flush.MaxPending != 1 {
		t.Errorf("expected max_pending 1, got %d", cfg.Flush.MaxPending)
	}

	// Relative ./ paths resolve against the config directory.
	want := filepath.Join(dir, "data/photos.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("expected database path %q, got %q", want, cfg.Storage.DatabasePath)
	}
	// Defaults still applied for untouched sections.
	if cfg.Search.DefaultLimit != 10 {
		t.Errorf("expected default search limit 10, got %d", cfg.Search.DefaultLimit)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestValidateRejectsBadDimensions(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	cfg.Embedding.Dimensions = -1
	if err := Validate(&cfg); err == nil {
		t.Error("expected error for negative dimensions")
	}
}
