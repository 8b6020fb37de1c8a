package config

import (
	"strings"
	"testing"
	"time"

	"github.com/i474232898/weather-cache-proxy/internal/ratelimit"
	"github.com/i474232898/weather-cache-proxy/internal/weather/providers"
)

var envKeys = []string{
	"API_KEY", "WEATHER_BASE_URL", "REDIS_URL", "CACHE_TTL", "RATE_LIMITS",
	"RATE_LIMIT_FAIL_CLOSED", "UPSTREAM_TIMEOUT", "UPSTREAM_MAX_BODY_BYTES",
	"BREAKER_MAX_FAILURES", "BREAKER_OPEN_TIMEOUT", "SWEEP_INTERVAL",
	"PROXY_HEADER", "LOG_LEVEL", "PORT",
}

// clearEnv blanks every variable FromEnv reads; empty values fall back to
// defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "secret")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.BaseURL != providers.DefaultVisualCrossingURL {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.CacheTTL != 43200*time.Second {
		t.Errorf("CacheTTL = %v, want 12h", cfg.CacheTTL)
	}
	want := ratelimit.DefaultTiers()
	if len(cfg.RateLimits) != len(want) {
		t.Fatalf("RateLimits = %v", cfg.RateLimits)
	}
	for i := range want {
		if cfg.RateLimits[i] != want[i] {
			t.Errorf("RateLimits[%d] = %v, want %v", i, cfg.RateLimits[i], want[i])
		}
	}
	if cfg.UpstreamTimeout != 10*time.Second || cfg.BreakerMaxFailures != 5 || cfg.Port != "8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.RedisURL != "" || cfg.RateLimitFailClosed {
		t.Errorf("redis/fail-closed should be off by default: %+v", cfg)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_KEY", "secret")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("RATE_LIMITS", "5/1m,50/24h")
	t.Setenv("RATE_LIMIT_FAIL_CLOSED", "true")
	t.Setenv("BREAKER_MAX_FAILURES", "0")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("PORT", "9090")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error: %v", err)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" || cfg.CacheTTL != 30*time.Minute {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.RateLimits) != 2 || cfg.RateLimits[1] != (ratelimit.Tier{Window: 24 * time.Hour, Limit: 50}) {
		t.Errorf("RateLimits = %v", cfg.RateLimits)
	}
	if !cfg.RateLimitFailClosed || cfg.BreakerMaxFailures != 0 || cfg.LogLevel != "debug" || cfg.Port != "9090" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing api key", map[string]string{}, "APIKey"},
		{"bad ttl", map[string]string{"API_KEY": "k", "CACHE_TTL": "soon"}, "CACHE_TTL"},
		{"zero ttl", map[string]string{"API_KEY": "k", "CACHE_TTL": "0s"}, "CacheTTL"},
		{"bad tiers", map[string]string{"API_KEY": "k", "RATE_LIMITS": "lots"}, "RATE_LIMITS"},
		{"bad bool", map[string]string{"API_KEY": "k", "RATE_LIMIT_FAIL_CLOSED": "maybe"}, "RATE_LIMIT_FAIL_CLOSED"},
		{"bad log level", map[string]string{"API_KEY": "k", "LOG_LEVEL": "loud"}, "LogLevel"},
		{"bad base url", map[string]string{"API_KEY": "k", "WEATHER_BASE_URL": "not a url"}, "BaseURL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("FromEnv() error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}
