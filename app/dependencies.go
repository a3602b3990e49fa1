package app

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/mlops-service/config"
	"github.com/upb/mlops-service/internal/observability"
	"github.com/upb/mlops-service/middleware"
	"github.com/upb/mlops-service/repositories"
	"github.com/upb/mlops-service/repositories/postgres"
	"github.com/upb/mlops-service/services/analytics"
	"github.com/upb/mlops-service/services/persistence"
	"github.com/upb/mlops-service/services/replay"
	"github.com/upb/mlops-service/services/tracking"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config    *config.Config
	DB        *postgres.DB // nil when no store is configured
	Logger    *zap.Logger
	Registry  *observability.Registry
	StartedAt time.Time

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	MetricEvents repositories.MetricEventRepository

	// Services
	Notifier  persistence.Notifier
	Tracking  *tracking.Service
	Analytics *analytics.Service
	Replay    *replay.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware

	async  *persistence.AsyncNotifier
	closed bool
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	var db *postgres.DB
	var factory *postgres.RepositoryFactory

	if cfg.Persistence.Mode == config.PersistenceModePostgres {
		if !cfg.Database.Configured() {
			logger.Warn("PERSISTENCE_MODE=postgres but no DATABASE_URL or DB_HOST set, falling back to noop persistence")
		} else {
			f, err := postgres.NewRepositoryFactory(ctx, cfg.Database, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to initialize database: %w", err)
			}
			factory = f
			db = f.GetDB()
		}
	}

	deps, err := build(cfg, logger, db)
	if err != nil {
		if factory != nil {
			_ = factory.Close()
		}
		return nil, err
	}
	deps.RepoFactory = factory

	logger.Info("all dependencies initialized successfully",
		zap.Bool("persistent_store", deps.MetricEvents != nil),
		zap.Bool("ingest_auth", deps.AuthMiddleware.Enabled()))
	return deps, nil
}

// build wires everything above the database connection. db may be nil.
func build(cfg *config.Config, logger *zap.Logger, db *postgres.DB) (*Dependencies, error) {
	deps := &Dependencies{
		Config:    cfg,
		DB:        db,
		Logger:    logger,
		StartedAt: time.Now().UTC(),
	}

	registry, err := observability.NewRegistry(observability.RegistryOptions{
		ServiceName:        cfg.Metrics.ServiceName,
		Version:            cfg.Metrics.Version,
		DefaultModel:       cfg.Metrics.DefaultModel,
		MaxSeriesPerMetric: cfg.Metrics.MaxSeries,
		RuntimeCollectors:  cfg.Metrics.RuntimeCollectors,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics registry: %w", err)
	}
	deps.Registry = registry

	if db != nil {
		deps.MetricEvents = postgres.NewMetricEventRepository(db, logger)
	}

	if err := deps.initNotifier(); err != nil {
		return nil, fmt.Errorf("failed to initialize persistence: %w", err)
	}

	deps.initServices()
	deps.initAuth(cfg)

	return deps, nil
}

// initNotifier picks how accepted events reach the store
func (d *Dependencies) initNotifier() error {
	switch {
	case d.MetricEvents == nil:
		d.Notifier = persistence.NewNoopNotifier(d.Logger)

	case d.Config.Persistence.Authoritative:
		// The request must observe the write outcome
		d.Notifier = persistence.NewRepositoryNotifier(d.MetricEvents, d.Logger)

	default:
		async := persistence.NewAsyncNotifier(d.MetricEvents, d.Logger, persistence.Config{
			BufferSize:  d.Config.Persistence.BufferSize,
			WorkerCount: d.Config.Persistence.WorkerCount,
		})
		if err := async.Start(); err != nil {
			return err
		}
		d.async = async
		d.Notifier = async
	}
	return nil
}

func (d *Dependencies) initServices() {
	d.Tracking = tracking.NewService(d.Registry, d.Notifier, tracking.Config{
		Authoritative: d.Config.Persistence.Authoritative,
	}, d.Logger)

	// Keep the interfaces nil, not typed nils, when there is no store
	var repo repositories.MetricEventRepository
	if d.MetricEvents != nil {
		repo = d.MetricEvents
	}

	d.Analytics = analytics.NewService(repo, "/metrics", d.Logger)
	d.Replay = replay.NewService(repo, d.Registry, d.StartedAt, replay.Config{
		Window: d.Config.Metrics.RebuildWindow,
	}, d.Logger)
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("INGEST_JWT_SECRET not set, ingestion endpoints are unauthenticated")
		d.AuthMiddleware = middleware.NewAuthMiddleware(nil, d.Logger)
		return
	}
	validator := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("ingestion auth enabled")
}

// PersistenceQueue returns the best-effort write queue, or nil when writes
// are synchronous or there is no store.
func (d *Dependencies) PersistenceQueue() *persistence.AsyncNotifier {
	return d.async
}

// Close gracefully shuts down all dependencies. Queued events are flushed
// before the database closes.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.closed {
		return nil
	}
	d.closed = true

	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.async != nil {
		timeout := d.Config.Server.ShutdownTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.async.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush persistence queue: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
