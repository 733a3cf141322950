// Command authority runs the Session Authority process: the authoritative
// catalogue of preview sessions, exposed to the configurator UI and to the
// Gateway process (spec §2).
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
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/previewbox/orchestrator/internal/config"
	"github.com/previewbox/orchestrator/internal/platform"
	"github.com/previewbox/orchestrator/internal/signing"
	"github.com/previewbox/orchestrator/internal/telemetry"
	"github.com/previewbox/orchestrator/pkg/session"
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
	if err := platform.RunAuthorityMigrations(cfg.DatabaseURL, cfg.MigrationsAuthorityDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	metrics := telemetry.NewMetricsRegistry()

	gatewayClient := signing.NewClient(cfg.GatewayInternalURL, cfg.InternalApiSecret, 10*time.Second)

	store := session.NewStore(pool)
	capacity := session.NewCapacityTracker()
	policy := session.Policy{
		MaxSessionsPerIp:     cfg.MaxSessionsPerIp,
		MaxConcurrentSchemas: cfg.MaxConcurrentSchemas,
		HeapSoftCeilingMB:    cfg.HeapSoftCeilingMB,
		PreviewTTL:           cfg.PreviewTTL(),
	}
	svc := session.NewService(store, session.NewSignedGatewayClient(gatewayClient), capacity, policy, logger)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go session.RunExpirySweepLoop(sweepCtx, svc, 1*time.Minute, logger)

	router := chi.NewRouter()
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	router.Handle(cfg.MetricsPath, promhttp.HandlerFor(metrics, promhttp.HandlerOpts{}))

	router.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{AllowedOrigins: cfg.CORSAllowedOrigins, AllowedMethods: []string{"GET", "POST"}}))
		r.Mount("/api/preview/configurator", session.NewPublicHandler(svc).Routes())
	})

	router.Group(func(r chi.Router) {
		r.Use(signing.Middleware(cfg.InternalApiSecret, cfg.MaxClockSkew(), logger))
		r.Mount("/", session.NewInternalHandler(svc).Routes())
	})

	return serveAndShutdown(ctx, cfg.AuthorityListenAddr(), router, logger)
}

func serveAndShutdown(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authority listening", "addr", addr)
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
