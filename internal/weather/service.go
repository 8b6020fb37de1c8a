package weather

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-cache-proxy/internal/ratelimit"
)

// ServiceConfig holds the policy knobs of a Service.
type ServiceConfig struct {
	// BaseURL is the upstream endpoint the location is appended to.
	BaseURL string
	// APIKey is the upstream credential sent as the "key" query parameter.
	APIKey string
	// CacheTTL is how long a successful upstream payload is served from cache.
	CacheTTL time.Duration
	// UpstreamTimeout bounds a single upstream call.
	UpstreamTimeout time.Duration
	// FailClosed denies requests when the limiter backend errors instead of
	// admitting them.
	FailClosed bool
}

// Response is a successful lookup.
type Response struct {
	Body   []byte
	Cached bool

	// RateLimit is the admission decision for this request. It is also set on
	// the Response returned alongside a KindRateLimited error.
	RateLimit ratelimit.Decision
}

// Service runs the cache-aside lookup. Only successful upstream payloads are
// written to the cache.
type Service struct {
	cfg      ServiceConfig
	cache    Cache
	limiter  Limiter
	provider Provider
	recorder Recorder
	logger   *zap.Logger
}

// NewService creates a new Service. All dependencies are owned by the caller.
func NewService(cfg ServiceConfig, cache Cache, limiter Limiter, provider Provider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		cache:    cache,
		limiter:  limiter,
		provider: provider,
		recorder: nopRecorder{},
		logger:   logger,
	}
}

// WithRecorder sets the metrics sink and returns s.
func (s *Service) WithRecorder(r Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

// Lookup serves one request. identity is the client the rate limit is charged
// to; params are the raw query parameters. Any returned error is a *Error.
func (s *Service) Lookup(ctx context.Context, identity string, params map[string]string) (Response, error) {
	q, err := Normalize(params)
	if err != nil {
		return Response{}, err
	}

	if identity == "" {
		identity = "unknown"
	}
	decision, err := s.limiter.Admit(ctx, identity)
	if err != nil {
		s.logger.Error("rate limiter unavailable", zap.String("identity", identity), zap.Error(err))
		if s.cfg.FailClosed {
			return Response{}, &Error{Kind: KindUnavailable, Message: MsgLimiterUnavailable, Err: err}
		}
		decision = ratelimit.Decision{Allowed: true}
	}
	if !decision.Allowed {
		s.recorder.RateLimitDenied()
		s.logger.Warn("rate limit exceeded",
			zap.String("identity", identity),
			zap.Stringer("tier", decision.Tier))
		return Response{RateLimit: decision}, &Error{
			Kind:    KindRateLimited,
			Message: fmt.Sprintf("%s: %s", MsgRateLimited, decision.Tier),
		}
	}

	key := q.CacheKey()
	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	if ok {
		s.recorder.CacheHit()
		return Response{Body: cached, Cached: true, RateLimit: decision}, nil
	}
	s.recorder.CacheMiss()

	body, err := s.fetch(ctx, q)
	if err != nil {
		return Response{RateLimit: decision}, err
	}
	// Written under the request context, not the upstream deadline.
	if err := s.cache.Set(ctx, key, body, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return Response{Body: body, RateLimit: decision}, nil
}

func (s *Service) fetch(ctx context.Context, q Query) ([]byte, error) {
	if s.cfg.UpstreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UpstreamTimeout)
		defer cancel()
	}

	start := time.Now()
	res := s.provider.Fetch(ctx, q.UpstreamURL(s.cfg.BaseURL, s.cfg.APIKey))
	s.recorder.Upstream(res.Kind.String(), time.Since(start))

	log := s.logger.With(
		zap.String("provider", s.provider.Name()),
		zap.String("location", q.Location),
		zap.Int("status", res.Status))

	switch res.Kind {
	case FetchSuccess:
		return res.Body, nil
	case FetchRateLimited:
		log.Warn("upstream rate limited")
		return nil, &Error{Kind: KindUpstreamRateLimited, Message: MsgUpstreamRateLimited, Status: res.Status}
	case FetchHTTPError:
		log.Error("upstream http error", zap.String("message", res.Message))
		return nil, &Error{Kind: KindHTTPError, Message: res.Message, Status: res.Status}
	case FetchEmptyBody:
		log.Error("upstream returned empty body")
		return nil, &Error{Kind: KindEmptyBody, Message: MsgEmptyResponse, Status: res.Status}
	case FetchMalformedBody:
		log.Error("failed to decode upstream JSON", zap.ByteString("response_text", res.Body), zap.Error(res.Err))
		return nil, &Error{Kind: KindMalformedBody, Message: MsgMalformedBody, ResponseText: string(res.Body), Err: res.Err}
	case FetchConnectionFailed:
		log.Error("upstream connection failed", zap.Error(res.Err))
		return nil, &Error{Kind: KindConnectionFailed, Message: MsgConnectionFailed, Err: res.Err}
	case FetchTimedOut:
		log.Error("upstream request timed out", zap.Error(res.Err))
		return nil, &Error{Kind: KindTimedOut, Message: MsgTimedOut, Err: res.Err}
	case FetchCircuitOpen:
		log.Warn("upstream circuit open", zap.Error(res.Err))
		return nil, &Error{Kind: KindUnavailable, Message: MsgCircuitOpen, Err: res.Err}
	case FetchOther:
		log.Error("upstream request failed", zap.String("message", res.Message), zap.Error(res.Err))
		return nil, &Error{Kind: KindUnexpected, Message: MsgRequestFailed, Err: res.Err}
	default:
		log.Error("unclassified upstream result", zap.Stringer("kind", res.Kind))
		return nil, &Error{Kind: KindUnexpected, Message: MsgUnexpected, Err: res.Err}
	}
}

type nopRecorder struct{}

func (nopRecorder) CacheHit() {}
func (nopRecorder) CacheMiss() {}
func (nopRecorder) RateLimitDenied() {}
func (nopRecorder) Upstream(string, time.Duration) {}
