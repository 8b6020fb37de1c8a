package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weather-cache-proxy/internal/api/http"
	"github.com/i474232898/weather-cache-proxy/internal/config"
	"github.com/i474232898/weather-cache-proxy/internal/logging"
	"github.com/i474232898/weather-cache-proxy/internal/metrics"
	"github.com/i474232898/weather-cache-proxy/internal/ratelimit"
	"github.com/i474232898/weather-cache-proxy/internal/scheduler"
	"github.com/i474232898/weather-cache-proxy/internal/store"
	"github.com/i474232898/weather-cache-proxy/internal/weather"
	"github.com/i474232898/weather-cache-proxy/internal/weather/providers"
)

func main() {
	// Load configuration (.env first, then environment).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Cache and limiter share one backing store: Redis when configured,
	// process memory otherwise.
	var (
		cache   weather.Cache
		limiter weather.Limiter
		targets []scheduler.Target
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis not reachable at startup", zap.String("addr", opts.Addr), zap.Error(err))
		}
		cancel()

		cache = store.NewRedisCache(rdb)
		limiter, err = ratelimit.NewRedis(rdb, cfg.RateLimits, nil)
		if err != nil {
			logger.Fatal("failed to build rate limiter", zap.Error(err))
		}
	} else {
		logger.Info("REDIS_URL not set; using in-memory cache and rate limiter")
		memCache := store.NewMemoryCache(nil)
		memLimiter, err := ratelimit.NewMemory(cfg.RateLimits, nil)
		if err != nil {
			logger.Fatal("failed to build rate limiter", zap.Error(err))
		}
		cache, limiter = memCache, memLimiter
		targets = append(targets,
			scheduler.Target{Name: "cache", Sweeper: memCache},
			scheduler.Target{Name: "ratelimit", Sweeper: memLimiter},
		)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.UpstreamTimeout,
	}
	provider := providers.NewVisualCrossingProvider(httpClient, cfg.UpstreamMaxBodyBytes, providers.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	})

	service := weather.NewService(weather.ServiceConfig{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		CacheTTL:        cfg.CacheTTL,
		UpstreamTimeout: cfg.UpstreamTimeout,
		FailClosed:      cfg.RateLimitFailClosed,
	}, cache, limiter, provider, logger).WithRecorder(m)

	// Sweeper for in-memory stores; Redis expires keys itself.
	sched := scheduler.New(cfg.SweepInterval, logger, m.Swept, targets...)
	if err := sched.Start(); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "weather-cache-proxy",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.UpstreamTimeout + 5*time.Second,
		ProxyHeader:           cfg.ProxyHeader,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-cache-proxy",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, service, logger)
	httpapi.RegisterMetrics(app, reg)

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}
