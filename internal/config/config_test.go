package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"demostudio/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.MediaDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.Queue.Transform.MaxAttempts != 3 || cfg.Queue.Export.MaxAttempts != 2 {
		t.Fatalf("unexpected lane defaults: %+v", cfg.Queue)
	}
	if cfg.Queue.Voice.Concurrency != 10 {
		t.Fatalf("unexpected voice concurrency: %d", cfg.Queue.Voice.Concurrency)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`media_dir = "` + filepath.Join(dir, "media") + `"`,
		"[queue.export]",
		"concurrency = 1",
		"max_attempts = 4",
		"backoff_seconds = 7",
		"timeout_seconds = 60",
		"[speech]",
		`base_url = "https://speech.example.com/"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Queue.Export.MaxAttempts != 4 || cfg.Queue.Export.BackoffSeconds != 7 {
		t.Fatalf("override not applied: %+v", cfg.Queue.Export)
	}
	if cfg.Speech.BaseURL != "https://speech.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Speech.BaseURL)
	}
	// Untouched lanes keep defaults.
	if cfg.Queue.Transform.Concurrency != 5 {
		t.Fatalf("transform defaults lost: %+v", cfg.Queue.Transform)
	}
}

func TestValidateRejectsBadQueue(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.MediaDir = t.TempDir()
	cfg.Queue.Voice.MaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero max_attempts")
	}
	cfg = config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.MediaDir = t.TempDir()
	cfg.Logging.Format = "yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad log format")
	}
}
