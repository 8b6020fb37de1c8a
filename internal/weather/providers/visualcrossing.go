package providers

import (
	"context"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-cache-proxy/internal/weather"
)

// DefaultVisualCrossingURL is the Visual Crossing timeline endpoint.
const DefaultVisualCrossingURL = "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline/"

// VisualCrossingProvider implements the weather.Provider interface for the
// Visual Crossing timeline API.
type VisualCrossingProvider struct {
	name    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewVisualCrossingProvider(client *http.Client, maxBodyBytes int64, breaker BreakerConfig) *VisualCrossingProvider {
	return &VisualCrossingProvider{
		name: "visualcrossing",
		httpCfg: HTTPClientConfig{
			Client:       client,
			MaxBodyBytes: maxBodyBytes,
		},
		circuit: newCircuitBreaker("visualcrossing", breaker),
	}
}

func (p *VisualCrossingProvider) Name() string {
	return p.name
}

// Fetch issues a single GET for url, which already carries the credential and
// options, and classifies the outcome.
func (p *VisualCrossingProvider) Fetch(ctx context.Context, url string) weather.FetchResult {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
	return doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
}

var _ weather.Provider = (*VisualCrossingProvider)(nil)
