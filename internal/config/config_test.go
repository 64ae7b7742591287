package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("baseUrl = %q", cfg.BaseURL)
	}
	if got := time.Duration(cfg.Status.PollInterval); got != 30*time.Second {
		t.Errorf("pollInterval = %v", got)
	}
	if cfg.Status.Transport != "sse" {
		t.Errorf("transport = %q", cfg.Status.Transport)
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	raw := `{
  "baseUrl": "https://shop.example.com/api",
  "status": {"transport": "websocket", "reconnectDelay": "5s"},
  "stub": {"addr": ":9999", "seed": false}
}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "https://shop.example.com/api" {
		t.Errorf("baseUrl = %q", cfg.BaseURL)
	}
	if cfg.Status.Transport != "websocket" {
		t.Errorf("transport = %q", cfg.Status.Transport)
	}
	if got := time.Duration(cfg.Status.ReconnectDelay); got != 5*time.Second {
		t.Errorf("reconnectDelay = %v", got)
	}
	if cfg.Stub.Addr != ":9999" || cfg.Stub.Seed {
		t.Errorf("stub = %+v", cfg.Stub)
	}
	// Untouched fields keep their defaults.
	if got := time.Duration(cfg.RequestTimeout); got != 10*time.Second {
		t.Errorf("requestTimeout = %v", got)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	raw := `{"baseUrl": "https://from-file"}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MINISHOP_BASE_URL", "https://from-env")
	t.Setenv("MINISHOP_POLL_INTERVAL", "45s")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "https://from-env" {
		t.Errorf("baseUrl = %q", cfg.BaseURL)
	}
	if got := time.Duration(cfg.Status.PollInterval); got != 45*time.Second {
		t.Errorf("pollInterval = %v", got)
	}
}

func TestInvalidValuesRejected(t *testing.T) {
	dir := t.TempDir()
	raw := `{"status": {"transport": "carrier-pigeon"}}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("bad transport accepted")
	}

	raw = `{"requestTimeout": "not-a-duration"}`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("bad duration accepted")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := New()
	cfg.BaseURL = "https://saved.example.com"
	if err := cfg.Save(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.BaseURL != cfg.BaseURL {
		t.Errorf("round trip baseUrl = %q", loaded.BaseURL)
	}
	if time.Duration(loaded.Status.ReconnectDelay) != 3*time.Second {
		t.Errorf("round trip reconnectDelay = %v", loaded.Status.ReconnectDelay)
	}
}
