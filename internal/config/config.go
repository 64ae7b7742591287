// Package config loads the minishop.json configuration: defaults, then the
// file, then MINISHOP_* environment overrides, in that order.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// FileName is the name of the configuration file.
	FileName = "minishop.json"

	// DefaultBaseURL points at a locally running stub backend.
	DefaultBaseURL = "http://localhost:8090"

	// DefaultStubAddr is where the serve command listens.
	DefaultStubAddr = ":8090"
)

// Config is the complete minishop.json configuration.
type Config struct {
	// BaseURL is the backend origin the client talks to.
	BaseURL string `json:"baseUrl,omitempty"`

	// RequestTimeout is the per-request deadline ("10s").
	RequestTimeout Duration `json:"requestTimeout,omitempty"`

	// Status contains status channel tuning.
	Status StatusConfig `json:"status,omitempty"`

	// Stub contains the embedded stub backend settings.
	Stub StubConfig `json:"stub,omitempty"`

	// LogLevel is debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty"`
}

// StatusConfig tunes the status channel.
type StatusConfig struct {
	// Transport selects the push transport: "sse" or "websocket".
	Transport string `json:"transport,omitempty"`

	// PollInterval is the fallback poll period ("30s").
	PollInterval Duration `json:"pollInterval,omitempty"`

	// ReconnectDelay is the fixed wait before reopening a failed stream.
	ReconnectDelay Duration `json:"reconnectDelay,omitempty"`
}

// StubConfig configures the embedded stub backend.
type StubConfig struct {
	// Addr is the listen address for the serve command.
	Addr string `json:"addr,omitempty"`

	// ReceiptDir stores uploaded payment receipts. Empty keeps them in
	// memory.
	ReceiptDir string `json:"receiptDir,omitempty"`

	// Seed fills the catalog with demo data on start.
	Seed bool `json:"seed,omitempty"`
}

// Duration is a time.Duration that marshals as a string like "30s".
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// New returns a Config with default values.
func New() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		RequestTimeout: Duration(10 * time.Second),
		Status: StatusConfig{
			Transport:      "sse",
			PollInterval:   Duration(30 * time.Second),
			ReconnectDelay: Duration(3 * time.Second),
		},
		Stub: StubConfig{
			Addr: DefaultStubAddr,
			Seed: true,
		},
		LogLevel: "info",
	}
}

// Load reads minishop.json from dir, falling back to defaults when the file
// does not exist, then applies environment overrides.
func Load(dir string) (*Config, error) {
	cfg := New()
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from MINISHOP_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("MINISHOP_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("MINISHOP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MINISHOP_STUB_ADDR"); v != "" {
		c.Stub.Addr = v
	}
	if v := os.Getenv("MINISHOP_STUB_SEED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Stub.Seed = b
		}
	}
	if v := os.Getenv("MINISHOP_STATUS_TRANSPORT"); v != "" {
		c.Status.Transport = v
	}
	if v := os.Getenv("MINISHOP_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Status.PollInterval = Duration(d)
		}
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("baseUrl must not be empty")
	}
	switch c.Status.Transport {
	case "sse", "websocket":
	default:
		return fmt.Errorf("status.transport must be \"sse\" or \"websocket\", got %q", c.Status.Transport)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logLevel must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// Save writes the config to dir/minishop.json.
func (c *Config) Save(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(filepath.Join(dir, FileName), data, 0o644)
}
