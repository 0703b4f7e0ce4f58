package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/erpbridge/pkg/audit"
	"github.com/platinummonkey/erpbridge/pkg/bridge"
	"github.com/platinummonkey/erpbridge/pkg/config"
	"github.com/platinummonkey/erpbridge/pkg/httputil"
	"github.com/platinummonkey/erpbridge/pkg/observability"
	"github.com/platinummonkey/erpbridge/pkg/platform"
	"github.com/platinummonkey/erpbridge/pkg/ratelimit"
	"github.com/platinummonkey/erpbridge/pkg/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	store, err := newStore(cfg)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize token store")
		os.Exit(1)
	}
	instrumented := token.NewInstrumentedStore(store, cfg.Store.Backend, metrics)

	issuer := token.NewIssuer(instrumented, cfg.Bridge.ERPBaseURL, cfg.Bridge.TokenLength, cfg.Bridge.TokenTTL)
	validator := token.NewValidator(instrumented, cfg.Bridge.TokenLength)

	platformClient := platform.NewClient(cfg.Bridge.PlatformURL, cfg.Bridge.PlatformTimeout, logger)

	ssoBridge := bridge.New(issuer, validator, platformClient, platformClient, logger, metrics)

	auditRecorder, err := newAuditRecorder(cfg, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize audit trail")
		os.Exit(1)
	}
	ssoBridge.SetAuditRecorder(auditRecorder)

	handlers := bridge.NewHandlers(ssoBridge, cfg.Bridge.DashboardURL, cfg.Bridge.LoginURL, logger)

	router := mux.NewRouter()
	handlers.RegisterRoutes(router)

	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware(logger),
		httputil.LoggingMiddleware(logger),
		httputil.MetricsMiddleware(metrics),
		httputil.RecoveryMiddleware(logger),
		httputil.MaxBytesMiddleware(1 << 20),
		httputil.ContentTypeMiddleware,
	}
	if cfg.RateLimit.Enabled {
		middlewares = append(middlewares, ratelimit.Middleware(newLimiter(cfg, store), logger))
	}
	chain := httputil.Chain(middlewares...)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      chain(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(store))
	if cfg.Observability.MetricsEnabled {
		healthMux.Handle("/metrics", observability.Handler(registry))
	}
	healthServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(func(_ context.Context) error {
		return store.Close()
	})
	shutdown.RegisterShutdownFunc(func(_ context.Context) error {
		return auditRecorder.Close()
	})

	var g errgroup.Group
	g.Go(func() error {
		logger.Infof("ERP SSO bridge listening on %s", apiServer.Addr)
		if err := apiServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Infof("Health/metrics server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(shutdown.WaitForShutdown)

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Server exited with error")
		os.Exit(1)
	}
}

// newStore builds the configured token store backend.
func newStore(cfg *config.Config) (token.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		return token.NewRedisStore(token.RedisConfig{
			URL:        cfg.Store.RedisURL,
			Password:   cfg.Store.RedisPassword,
			DB:         cfg.Store.RedisDB,
			MaxRetries: cfg.Store.RedisMaxRetries,
			PoolSize:   cfg.Store.RedisPoolSize,
		})
	case config.StoreBackendMemory:
		return token.NewMemoryStore(cfg.Store.MemorySize, cfg.Bridge.TokenTTL), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

// newLimiter shares the token store's Redis connection when available so the
// limit holds across instances; otherwise it falls back to process memory.
func newLimiter(cfg *config.Config, store token.Store) ratelimit.Limiter {
	limitConfig := &ratelimit.Config{
		RequestsPerWindow: cfg.RateLimit.RequestsPerWindow,
		Window:            cfg.RateLimit.Window,
		Burst:             cfg.RateLimit.Burst,
	}

	if redisStore, ok := store.(*token.RedisStore); ok {
		return ratelimit.NewRedisLimiter(redisStore.Client(), limitConfig, "")
	}

	limiter := ratelimit.NewMemoryLimiter(limitConfig)
	limiter.StartCleanup(context.Background())
	return limiter
}

// newAuditRecorder routes the trail to the configured file alongside the
// structured logs, or to the logs alone.
func newAuditRecorder(cfg *config.Config, logger *observability.Logger) (audit.Recorder, error) {
	logRecorder := audit.NewLogRecorder(logger)
	if cfg.Observability.AuditLogFile == "" {
		return logRecorder, nil
	}

	fileRecorder, err := audit.NewFileRecorder(cfg.Observability.AuditLogFile)
	if err != nil {
		return nil, err
	}
	return audit.NewMultiRecorder(logRecorder, fileRecorder), nil
}
