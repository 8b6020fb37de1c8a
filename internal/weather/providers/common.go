package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-cache-proxy/internal/common"
	"github.com/i474232898/weather-cache-proxy/internal/weather"
)

// DefaultMaxBodyBytes caps how much of an upstream response is read.
const DefaultMaxBodyBytes = 10 << 20

// HTTPClientConfig bundles the HTTP client and response limits.
type HTTPClientConfig struct {
	Client       *http.Client
	MaxBodyBytes int64
}

// BreakerConfig controls the circuit breaker in front of the provider.
// MaxFailures == 0 disables it.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive transport or 5xx failures that
	// opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a trial request.
	OpenTimeout time.Duration
}

var (
	errNoHTTPClient    = errors.New("http client not configured")
	errUpstreamFailure = errors.New("upstream failure")
	errBodyTooLarge    = errors.New("response body too large")
)

func newCircuitBreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker {
	if cfg.MaxFailures == 0 {
		return nil
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	})
}

// doRequest executes exactly one request through the optional circuit breaker
// and classifies the outcome. It never retries.
func doRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) weather.FetchResult {
	if cb == nil {
		return execute(ctx, cfg, buildRequest)
	}

	var res weather.FetchResult
	_, err := cb.Execute(func() (interface{}, error) {
		res = execute(ctx, cfg, buildRequest)
		if countsAsFailure(res) {
			return nil, errUpstreamFailure
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return weather.FetchResult{Kind: weather.FetchCircuitOpen, Message: err.Error(), Err: err}
	}
	return res
}

// countsAsFailure reports whether res should trip the breaker. Client errors
// and caller cancellations say nothing about upstream health.
func countsAsFailure(res weather.FetchResult) bool {
	switch res.Kind {
	case weather.FetchConnectionFailed, weather.FetchTimedOut:
		return true
	case weather.FetchHTTPError:
		return res.Status >= 500
	default:
		return false
	}
}

func execute(
	ctx context.Context,
	cfg HTTPClientConfig,
	buildRequest func(ctx context.Context) (*http.Request, error),
) weather.FetchResult {
	if cfg.Client == nil {
		return weather.FetchResult{Kind: weather.FetchOther, Message: errNoHTTPClient.Error(), Err: errNoHTTPClient}
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return weather.FetchResult{Kind: weather.FetchOther, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := cfg.Client.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	limit := cfg.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		res := classifyTransportError(err)
		res.Status = resp.StatusCode
		return res
	}
	if int64(len(body)) > limit {
		return weather.FetchResult{
			Kind:    weather.FetchOther,
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("response exceeds %d bytes", limit),
			Err:     errBodyTooLarge,
		}
	}

	return classifyResponse(resp.StatusCode, body)
}

// classifyResponse maps a received response to a FetchResult.
func classifyResponse(status int, body []byte) weather.FetchResult {
	switch {
	case status == http.StatusTooManyRequests:
		return weather.FetchResult{Kind: weather.FetchRateLimited, Status: status, Body: body}
	case status != http.StatusOK:
		return weather.FetchResult{Kind: weather.FetchHTTPError, Status: status, Body: body, Message: httpErrorMessage(status, body)}
	case len(bytes.TrimSpace(body)) == 0:
		return weather.FetchResult{Kind: weather.FetchEmptyBody, Status: status}
	}

	var probe json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return weather.FetchResult{Kind: weather.FetchMalformedBody, Status: status, Body: body, Err: err}
	}
	return weather.FetchResult{Kind: weather.FetchSuccess, Status: status, Body: body}
}

// httpErrorMessage prefers a JSON "message" field from the upstream body.
func httpErrorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("HTTP Error: %d", status)
}

// classifyTransportError maps an error from Client.Do or a body read.
func classifyTransportError(err error) weather.FetchResult {
	res := weather.FetchResult{Err: err, Message: err.Error()}

	var netErr net.Error
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		res.Kind = weather.FetchTimedOut
	case errors.Is(err, context.Canceled):
		res.Kind = weather.FetchOther
	case errors.As(err, &dnsErr),
		errors.As(err, &opErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		common.HasAny(err.Error(), "connection refused", "connection reset", "no such host", "broken pipe"):
		res.Kind = weather.FetchConnectionFailed
	default:
		res.Kind = weather.FetchOther
	}
	return res
}
