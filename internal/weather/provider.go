package weather

import (
	"context"
	"time"

	"github.com/i474232898/weather-cache-proxy/internal/ratelimit"
)

// FetchKind classifies the outcome of one upstream call.
type FetchKind int

const (
	FetchOther FetchKind = iota
	FetchSuccess
	FetchRateLimited
	FetchHTTPError
	FetchEmptyBody
	FetchMalformedBody
	FetchConnectionFailed
	FetchTimedOut
	FetchCircuitOpen
)

func (k FetchKind) String() string {
	switch k {
	case FetchSuccess:
		return "success"
	case FetchRateLimited:
		return "rate_limited"
	case FetchHTTPError:
		return "http_error"
	case FetchEmptyBody:
		return "empty_body"
	case FetchMalformedBody:
		return "malformed_body"
	case FetchConnectionFailed:
		return "connection_failed"
	case FetchTimedOut:
		return "timed_out"
	case FetchCircuitOpen:
		return "circuit_open"
	default:
		return "other"
	}
}

// FetchResult is what a Provider reports for a single request.
type FetchResult struct {
	Kind FetchKind

	// Status is the upstream HTTP status, when a response was received.
	Status int

	// Body is the raw response body. For FetchSuccess it is valid JSON.
	Body []byte

	// Message is a human readable description for HTTPError/Other.
	Message string

	// Err is the transport error, if any.
	Err error
}

// Provider issues a single request to the upstream weather API.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, url string) FetchResult
}

// Cache is the contract the in-memory and Redis cache stores satisfy.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Limiter is the admission policy applied per client identity.
type Limiter interface {
	Admit(ctx context.Context, identity string) (ratelimit.Decision, error)
}

// Recorder receives lookup outcomes. It is satisfied by *metrics.Metrics.
type Recorder interface {
	CacheHit()
	CacheMiss()
	RateLimitDenied()
	Upstream(outcome string, d time.Duration)
}
