package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/mlops-service/app"
	"github.com/upb/mlops-service/handlers"
	appmiddleware "github.com/upb/mlops-service/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	if deps.Config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(deps.Config.Server.RequestTimeout))
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Interfaces stay nil, not typed nils, when the parts are absent
	var db handlers.Database
	if deps.DB != nil {
		db = deps.DB
	}
	healthHandler := handlers.NewHealthHandler(db, deps.Registry.Gatherer(),
		deps.Config.Metrics.ServiceName, deps.Config.Metrics.Port, deps.Logger)
	if queue := deps.PersistenceQueue(); queue != nil {
		healthHandler.WithQueue(queue)
	}
	trackHandler := handlers.NewTrackHandler(deps.Tracking, deps.Logger)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Analytics, deps.Logger)
	refreshHandler := handlers.NewRefreshHandler(deps.Replay, deps.Logger)

	r.Get("/", handlers.IndexHandler(deps.Config.Metrics.ServiceName, deps.Config.Metrics.Version))

	// Health check endpoints
	r.Get("/health", healthHandler.HandleHealth)
	r.Get("/health/ready", healthHandler.HandleReadiness)

	// Exposition
	r.Method(http.MethodGet, "/metrics", deps.Registry.Handler(deps.Logger))

	r.Get("/analytics/{business_id}", analyticsHandler.HandleSummary)

	// Ingestion endpoints (authenticated when a secret is configured)
	r.Group(func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)
		r.Post("/track", trackHandler.HandleTrack)
		r.Post("/refresh-metrics", refreshHandler.HandleRefresh)
	})

	r.NotFound(handlers.NotFoundHandler)
	r.MethodNotAllowed(handlers.MethodNotAllowedHandler)

	return r
}
