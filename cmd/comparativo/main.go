package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"comparativo/internal/amqp"
	"comparativo/internal/backend"
	"comparativo/internal/cache"
	"comparativo/internal/cli"
	apphttp "comparativo/internal/http"
	applog "comparativo/internal/log"
	"comparativo/internal/metrics"
	"comparativo/internal/middleware/ratelimit"
	"comparativo/internal/services"
	"comparativo/internal/session"
)

func main() {
	envErr := cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	if envErr != nil {
		logger.Warn("Ignoring unreadable .env file", applog.FieldError, envErr)
	}
	cfg := cli.LoadAndValidateConfig(logger)

	appLogger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: "comparativo",
		Handler:   logger.Handler(),
	})

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	// Snapshot source
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	src, err := backend.Open(startCtx, bc, logger)
	if err != nil {
		logger.Error("Failed to initialize data backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	m := metrics.New(nil)

	// Session store
	cacheManager := cache.NewManager(logger)
	var sessions session.Store
	var redisStore *session.RedisStore
	switch cfg.SessionStore {
	case "redis":
		redisStore, err = session.NewRedisStore(startCtx, session.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SessionTTL,
		})
		if err != nil {
			logger.Error("Failed to connect to Redis session store", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		sessions = redisStore
		logger.Info("Using Redis session store", "addr", cfg.RedisAddr)
	default:
		sessions = session.NewMemoryStore(cfg.SessionCacheSize, cfg.SessionTTL, cacheManager,
			cache.WithEvictHook(func(_ string, reason cache.EvictReason) {
				m.ObserveSessionEviction(string(reason))
			}))
		cacheManager.StartCleanup(5 * time.Minute)
		logger.Info("Using in-memory session store", "size", cfg.SessionCacheSize, "ttl", cfg.SessionTTL)
	}

	opts := services.Options{
		Metrics: m,
		Timeout: cfg.QueryTimeout,
		Logger:  appLogger,
	}

	// Comparison events are optional
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, comparison events disabled", "error", err)
		} else {
			opts.Publisher = amqpClient
			logger.Info("Publishing comparison events", "exchange", cfg.AMQPExchange)
		}
	}

	svc := services.NewComparisonService(src, sessions, opts)

	srv := apphttp.NewServer(":"+cfg.Port, svc, apphttp.Options{
		Logger:  appLogger,
		Metrics: m,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		SessionTTL:     cfg.SessionTTL,
		SecureCookies:  cfg.SecureCookies,
		TrustedProxies: cfg.TrustedProxies,
	})

	// Comparisons can run for up to QueryTimeout
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.QueryTimeout + 15*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if redisStore != nil {
			_ = redisStore.Close()
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := src.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	})

	logger.Info("Starting comparativo server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"session_store", cfg.SessionStore)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
