package httpapi

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/i474232898/weather-cache-proxy/internal/ratelimit"
	"github.com/i474232898/weather-cache-proxy/internal/weather"
)

// HeaderCache reports whether the payload came from cache.
const HeaderCache = "X-Cache"

// RegisterRoutes wires the weather handler into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	app.Get("/weather", func(c *fiber.Ctx) error {
		resp, err := service.Lookup(c.UserContext(), clientIdentity(c), queryParams(c))
		writeRateLimitHeaders(c, resp.RateLimit)
		if err != nil {
			return writeError(c, err, logger)
		}

		if resp.Cached {
			c.Set(HeaderCache, "HIT")
		} else {
			c.Set(HeaderCache, "MISS")
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).Send(resp.Body)
	})
}

// RegisterMetrics exposes the Prometheus registry on /metrics.
func RegisterMetrics(app *fiber.App, gatherer prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// ErrorHandler renders errors that escape route handlers, including panics
// caught by the recover middleware, in the same {"ERROR": ...} shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := weather.MsgUnexpected
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"ERROR": msg})
}

func writeError(c *fiber.Ctx, err error, logger *zap.Logger) error {
	var werr *weather.Error
	if !errors.As(err, &werr) {
		werr = &weather.Error{Kind: weather.KindUnexpected, Message: weather.MsgUnexpected, Err: err}
	}

	status := werr.StatusCode()
	logger.Info("weather request failed",
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		zap.Stringer("kind", werr.Kind),
		zap.Int("status", status),
		zap.Error(werr))

	body := fiber.Map{"ERROR": werr.Message}
	if werr.Kind == weather.KindMalformedBody {
		body["response_text"] = werr.ResponseText
	}
	return c.Status(status).JSON(body)
}

// queryParams copies the query string into a map. When a parameter repeats the
// first value wins.
func queryParams(c *fiber.Ctx) map[string]string {
	params := make(map[string]string)
	c.Context().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		if _, ok := params[key]; !ok {
			params[key] = string(v)
		}
	})
	return params
}

// clientIdentity is the address rate limits are charged to. With a proxy header
// configured, only the left-most (originating) address is used.
func clientIdentity(c *fiber.Ctx) string {
	ip := c.IP()
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	return strings.Clone(strings.TrimSpace(ip))
}

func writeRateLimitHeaders(c *fiber.Ctx, decision ratelimit.Decision) {
	if decision.Limit <= 0 {
		return
	}
	c.Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
	c.Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.ResetAt.IsZero() {
		c.Set("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(time.Until(decision.ResetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.Set(fiber.HeaderRetryAfter, strconv.FormatInt(retryAfter, 10))
		}
	}
}
