package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/weather-cache-proxy/internal/ratelimit"
	"github.com/i474232898/weather-cache-proxy/internal/weather/providers"
)

type AppConfig struct {
	// APIKey is the upstream weather provider credential.
	APIKey string `validate:"required"`
	// BaseURL is the upstream timeline endpoint.
	BaseURL string `validate:"required,url"`

	// RedisURL selects Redis for the cache and limiter when set; otherwise both
	// run in memory.
	RedisURL string

	CacheTTL time.Duration `validate:"gt=0"`

	RateLimits          []ratelimit.Tier `validate:"required,min=1"`
	RateLimitFailClosed bool

	UpstreamTimeout      time.Duration `validate:"gt=0"`
	UpstreamMaxBodyBytes int64         `validate:"gt=0"`
	BreakerMaxFailures   uint32
	BreakerOpenTimeout   time.Duration `validate:"gte=0"`

	// SweepInterval controls how often expired in-memory entries are evicted.
	SweepInterval time.Duration `validate:"gt=0"`

	// ProxyHeader, when set, is trusted as the client address (e.g. X-Forwarded-For).
	ProxyHeader string
	LogLevel    string `validate:"oneof=debug info warn error"`

	Port string `validate:"required,numeric"`
}

var validate = validator.New()

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}
	return FromEnv()
}

// FromEnv builds and validates the configuration from the current environment
// without touching .env files.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}
	var err error

	cfg.APIKey = os.Getenv("API_KEY")
	cfg.BaseURL = getenvDefault("WEATHER_BASE_URL", providers.DefaultVisualCrossingURL)
	cfg.RedisURL = os.Getenv("REDIS_URL")

	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 12*time.Hour); err != nil {
		return nil, err
	}

	cfg.RateLimits, err = ratelimit.ParseTiers(getenvDefault("RATE_LIMITS", "20/1m,20/1h,200/24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMITS: %w", err)
	}
	if cfg.RateLimitFailClosed, err = getenvBool("RATE_LIMIT_FAIL_CLOSED", false); err != nil {
		return nil, err
	}

	if cfg.UpstreamTimeout, err = getenvDuration("UPSTREAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	cfg.UpstreamMaxBodyBytes = int64(getenvInt("UPSTREAM_MAX_BODY_BYTES", providers.DefaultMaxBodyBytes))

	maxFailures := getenvInt("BREAKER_MAX_FAILURES", 5)
	if maxFailures < 0 {
		return nil, fmt.Errorf("invalid BREAKER_MAX_FAILURES: %d", maxFailures)
	}
	cfg.BreakerMaxFailures = uint32(maxFailures)
	if cfg.BreakerOpenTimeout, err = getenvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if cfg.SweepInterval, err = getenvDuration("SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.ProxyHeader = os.Getenv("PROXY_HEADER")
	cfg.LogLevel = strings.ToLower(getenvDefault("LOG_LEVEL", "info"))
	cfg.Port = getenvDefault("PORT", "8080")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
