// Command gateway runs the Tenant Gateway process: the public tenant HTTP
// surface, the embedded Schema Manager, and the gateway-internal surface the
// Authority calls to drive schema provisioning (spec §2).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/previewbox/orchestrator/internal/config"
	"github.com/previewbox/orchestrator/internal/platform"
	"github.com/previewbox/orchestrator/internal/signing"
	"github.com/previewbox/orchestrator/internal/telemetry"
	"github.com/previewbox/orchestrator/pkg/gateway"
	"github.com/previewbox/orchestrator/pkg/sandbox"
	"github.com/previewbox/orchestrator/pkg/schema"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading config: %v\n", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	adminPool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer adminPool.Close()

	redisClient, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisClient.Close()

	metrics := telemetry.NewMetricsRegistry()

	authorityClient := signing.NewClient(cfg.AuthorityInternalURL, cfg.InternalApiSecret, 10*time.Second)

	cache := schema.NewCache(
		cfg.MaxCachedClients,
		int32(cfg.ConnectionLimitPerClient),
		schema.NewPgxClientFactory(cfg.DatabaseURL),
		logger,
		func(n int) { telemetry.CachedClients.Set(float64(n)) },
	)

	activeSchemas := gateway.NewAuthorityActiveSchemaClient(authorityClient)
	provisioner := schema.NewProvisioner(adminPool, cfg.DatabaseURL, int32(cfg.ConnectionLimitPerClient), cache, activeSchemas, logger, cfg.MaxConcurrentSchemas, cfg.HeapSoftCeilingMB)

	sessionCache := gateway.NewSessionCache(cfg.SessionCacheTTL(), 10_000)
	breaker := gateway.NewResolveBreaker(uint32(cfg.CircuitThreshold), cfg.CircuitResetInterval())
	resolveClient := gateway.NewSignedAuthorityClient(authorityClient)
	mockEmail := sandbox.NewMockEmailProvider(redisClient, cfg.PreviewTTL())

	pipeline := gateway.NewPipeline(sessionCache, resolveClient, breaker, provisioner, gateway.DefaultRouteMap, mockEmail, logger)

	backgroundCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go cache.RunIdleSweepLoop(backgroundCtx, 1*time.Minute, cfg.SchemaIdleTimeout())
	go provisioner.RunOrphanSweepLoop(backgroundCtx, cfg.OrphanSweepInterval())
	go gateway.RunCapacityReportLoop(backgroundCtx, provisioner, authorityClient, 30*time.Second, logger)

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Handle(cfg.MetricsPath, promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	router.Group(func(r chi.Router) {
		r.Use(signing.Middleware(cfg.InternalApiSecret, cfg.MaxClockSkew(), logger))
		r.Mount("/", gateway.NewInternalHandler(provisioner, pipeline, mockEmail).Routes())
	})

	router.Group(func(r chi.Router) {
		r.Use(pipeline.Middleware)
		r.HandleFunc("/*", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	})

	if err := serveAndShutdown(ctx, cfg.GatewayListenAddr(), router, logger); err != nil {
		provisioner.Shutdown()
		return err
	}
	provisioner.Shutdown()
	return nil
}

func serveAndShutdown(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
