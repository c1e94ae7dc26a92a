package config

import (
	"fmt"
	"net/url"

	"github.com/robfig/cron/v3"

	"github.com/IshaanNene/dealscout/internal/types"
)

var storageTypes = map[string]bool{
	"json": true, "jsonl": true, "csv": true,
	"mongodb": true, "sqlite": true, "postgres": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Scan.WaitTimeout < 0 {
		return fmt.Errorf("scan.wait_timeout must be >= 0")
	}
	if cfg.Scan.PollInterval <= 0 {
		return fmt.Errorf("scan.poll_interval must be > 0")
	}
	if cfg.Scan.MinCardSize < 0 {
		return fmt.Errorf("scan.min_card_size must be >= 0, got %v", cfg.Scan.MinCardSize)
	}
	switch cfg.Scan.RankMode {
	case "", "none", "price", "fee", "eta", "rating":
	default:
		return fmt.Errorf("scan.rank_mode must be none/price/fee/eta/rating, got %q", cfg.Scan.RankMode)
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.RequestTimeout <= 0 {
		return fmt.Errorf("fetcher.request_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	if cfg.Fetcher.RateLimit < 0 {
		return fmt.Errorf("fetcher.rate_limit must be >= 0, got %v", cfg.Fetcher.RateLimit)
	}
	if cfg.Fetcher.RateLimit > 0 && cfg.Fetcher.RateBurst < 1 {
		return fmt.Errorf("fetcher.rate_burst must be >= 1 when rate_limit is set")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	sinks := cfg.Storage.Types
	if len(sinks) == 0 {
		sinks = []string{cfg.Storage.Type}
	}
	for _, t := range sinks {
		if !storageTypes[t] {
			return fmt.Errorf("storage type %q is not supported (valid: json, jsonl, csv, mongodb, sqlite, postgres)", t)
		}
		if t == "postgres" && cfg.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for postgres storage")
		}
		if t == "mongodb" && cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for mongodb storage")
		}
	}

	if cfg.Watch.Cron != "" {
		if _, err := cron.ParseStandard(cfg.Watch.Cron); err != nil {
			return fmt.Errorf("watch.cron %q is invalid: %w", cfg.Watch.Cron, err)
		}
	}
	if cfg.Watch.Concurrency < 1 {
		return fmt.Errorf("watch.concurrency must be >= 1, got %d", cfg.Watch.Concurrency)
	}
	for _, u := range cfg.Watch.URLs {
		if err := ValidateURL(u); err != nil {
			return fmt.Errorf("watch.urls: %w", err)
		}
	}
	if cfg.Watch.WebhookURL != "" {
		if err := ValidateURL(cfg.Watch.WebhookURL); err != nil {
			return fmt.Errorf("watch.webhook_url: %w", err)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	if cfg.API.Port < 1 || cfg.API.Port > 65535 {
		return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
	}

	return nil
}

// ValidateURL checks if a URL string is a scannable listing page.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https, got %q", types.ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", types.ErrInvalidURL)
	}
	return nil
}
