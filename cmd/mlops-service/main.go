package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/mlops-service/app"
	"github.com/upb/mlops-service/config"
	"github.com/upb/mlops-service/internal/observability"
	"github.com/upb/mlops-service/routes"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

// initLogger builds the logger from LOG_LEVEL and LOG_FORMAT as loaded
// by config.New, .env included.
func initLogger(cfg config.ObservabilityConfig) (*zap.Logger, error) {
	return observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Metrics.RebuildOnStart {
		rebuildMetrics(ctx, deps)
	}

	srv := newAPIServer(cfg, routes.SetupRoutes(deps))
	metricsSrv := newMetricsServer(cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mlops service listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("persistence_mode", cfg.Persistence.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if metricsSrv != nil {
		startMetricsServer(metricsSrv, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}

	return deps.Close(shutdownCtx)
}

// rebuildMetrics restores counters from the store. Failure is not fatal:
// the service starts with whatever the registry holds.
func rebuildMetrics(ctx context.Context, deps *app.Dependencies) {
	result, err := deps.Replay.Refresh(ctx)
	if err != nil {
		deps.Logger.Warn("metrics rebuild on start failed", zap.Error(err))
		return
	}
	deps.Logger.Info("metrics rebuild on start",
		zap.String("status", result.Status),
		zap.Int("replayed", result.Replayed),
		zap.Int("skipped", result.Skipped))
}

func newAPIServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}
}

// newMetricsServer builds the dedicated exposition listener, or nil when
// it is disabled or would collide with the API port.
func newMetricsServer(cfg *config.Config, deps *app.Dependencies) *http.Server {
	if cfg.Metrics.Port == 0 || cfg.Metrics.Port == cfg.Server.Port {
		return nil
	}

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", deps.Registry.Handler(deps.Logger))

	return &http.Server{
		Addr:              cfg.MetricsAddress(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// startMetricsServer binds synchronously so a taken port is reported at
// startup. The API keeps serving either way.
func startMetricsServer(srv *http.Server, logger *zap.Logger) {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		logger.Warn("could not start prometheus metrics server", zap.String("addr", srv.Addr), zap.Error(err))
		return
	}

	logger.Info("prometheus metrics server listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("prometheus metrics server stopped", zap.Error(err))
		}
	}()
}
