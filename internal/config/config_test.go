package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IshaanNene/dealscout/internal/types"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Scan.WaitTimeout != 4500*time.Millisecond {
		t.Errorf("wait timeout = %v", cfg.Scan.WaitTimeout)
	}
	if !cfg.Scan.EmbeddedFallback {
		t.Error("embedded fallback should default to on")
	}

	for _, mode := range []string{"none", "price", "fee", "eta", "rating"} {
		cfg.Scan.RankMode = mode
		if err := Validate(cfg); err != nil {
			t.Errorf("rank_mode %q rejected: %v", mode, err)
		}
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"rank mode", func(c *Config) { c.Scan.RankMode = "distance" }, "scan.rank_mode"},
		{"poll interval", func(c *Config) { c.Scan.PollInterval = 0 }, "scan.poll_interval"},
		{"fetcher type", func(c *Config) { c.Fetcher.Type = "curl" }, "fetcher.type"},
		{"storage type", func(c *Config) { c.Storage.Type = "redis" }, "storage type"},
		{"postgres url", func(c *Config) { c.Storage.Types = []string{"json", "postgres"} }, "postgres_url"},
		{"mongo uri", func(c *Config) { c.Storage.Type = "mongodb" }, "mongo_uri"},
		{"cron", func(c *Config) { c.Watch.Cron = "every now and then" }, "watch.cron"},
		{"watch url", func(c *Config) { c.Watch.URLs = []string{"ftp://x"} }, "watch.urls"},
		{"webhook url", func(c *Config) { c.Watch.WebhookURL = "hooks.local" }, "watch.webhook_url"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"metrics port", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Port = 0 }, "metrics.port"},
		{"rate burst", func(c *Config) { c.Fetcher.RateBurst = 0 }, "rate_burst"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	if err := ValidateURL("https://www.doordash.com/food-delivery/"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
	for _, bad := range []string{"doordash.com", "ftp://doordash.com", "https://", "://bad"} {
		if err := ValidateURL(bad); !errors.Is(err, types.ErrInvalidURL) {
			t.Errorf("ValidateURL(%q) = %v, want ErrInvalidURL", bad, err)
		}
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dealscout.yaml")
	const body = `scan:
  wait_timeout: 2s
  rank_mode: eta
storage:
  type: csv
watch:
  urls:
    - https://www.ubereats.com/feed
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEALSCOUT_SCAN_RANK_MODE", "rating")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.WaitTimeout != 2*time.Second {
		t.Errorf("wait_timeout = %v", cfg.Scan.WaitTimeout)
	}
	if cfg.Scan.RankMode != "rating" {
		t.Errorf("env should override file, rank_mode = %q", cfg.Scan.RankMode)
	}
	if cfg.Storage.Type != "csv" {
		t.Errorf("storage.type = %q", cfg.Storage.Type)
	}
	if len(cfg.Watch.URLs) != 1 {
		t.Errorf("watch.urls = %v", cfg.Watch.URLs)
	}
	if cfg.Scan.PollInterval != 250*time.Millisecond {
		t.Errorf("unset keys should keep defaults, poll_interval = %v", cfg.Scan.PollInterval)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("loaded config invalid: %v", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}
