package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"github.com/bleu-ims/ims-gateway/api/routes"
	"github.com/bleu-ims/ims-gateway/internal/mutations"
	"github.com/bleu-ims/ims-gateway/internal/session"
	"github.com/bleu-ims/ims-gateway/internal/status"
	"github.com/bleu-ims/ims-gateway/internal/upstream"
	"github.com/bleu-ims/ims-gateway/internal/views"
	"github.com/bleu-ims/ims-gateway/pkg/config"
	"github.com/bleu-ims/ims-gateway/pkg/logger"
	"github.com/bleu-ims/ims-gateway/pkg/metrics"
	"github.com/bleu-ims/ims-gateway/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "ims-gateway"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: cfg.Tracing.ServiceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := newTracerProvider(runCtx, cfg.Tracing, cfg.App.Env)
	if err != nil {
		logg.Error(runCtx, "failed to bootstrap tracing", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logg.Error(ctx, "error flushing traces", err)
		}
	}()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(newPropagator())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gatewayMetrics := metrics.NewGateway(reg)

	var (
		store       session.Store
		redisPinger redis.Pinger
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(runCtx, cfg.Redis, logg)
		if err != nil {
			logg.Error(runCtx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		store = session.NewRedisStore(redisClient)
		redisPinger = redisClient
	} else {
		store = session.NewMemoryStore()
		logg.Warn(runCtx, "redis not configured, sessions are kept in memory")
	}

	sessions := session.NewManager(store,
		session.WithTTL(cfg.Session.TTL),
		session.WithLogger(logg),
		session.WithMetrics(gatewayMetrics),
	)

	httpClient := &http.Client{Timeout: cfg.Upstream.Timeout}
	newClient := func(s *session.Session) (*upstream.Client, error) {
		return upstream.NewClient(s,
			upstream.WithBaseURLs(cfg.Upstream.Services()),
			upstream.WithHTTPClient(httpClient),
			upstream.WithMetrics(gatewayMetrics),
			upstream.WithLogger(logg),
			upstream.WithTracerProvider(tp),
			upstream.WithPropagator(otel.GetTextMapPropagator()),
			upstream.WithErrorBodyLimit(cfg.Upstream.MaxErrorBody),
		)
	}

	registry := views.NewRegistry(
		func(s *session.Session) (views.Source, error) { return newClient(s) },
		views.WithPolicies(status.PoliciesFromConfig(cfg.Status)),
		views.WithIdleTTL(cfg.Views.IdleTTL),
		views.WithJanitorInterval(cfg.Views.JanitorInterval),
		views.WithLogger(logg),
		views.WithMetrics(gatewayMetrics),
	)
	sessions.OnLogout(func(s *session.Session, _ string) {
		registry.UnmountSession(s.ID())
	})
	go registry.Run(runCtx)

	coordinator := mutations.NewCoordinator(registry,
		func(s *session.Session) (mutations.Mutator, error) { return newClient(s) },
		logg,
	)

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(runCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	handler := routes.NewRouter(cfg, logg, routes.Observability{
		Gatherer:       reg,
		TracerProvider: tp,
		Propagator:     otel.GetTextMapPropagator(),
	}, redisPinger, sessions, registry, coordinator)

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
