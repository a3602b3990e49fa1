package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/upb/mlops-service/services/persistence"
	"github.com/upb/mlops-service/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the liveness response
type HealthResponse struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	Timestamp       string `json:"timestamp"`
	Monitoring      string `json:"monitoring"`
	MetricsEndpoint string `json:"metrics_endpoint"`
	PrometheusPort  int    `json:"prometheus_port"`
}

// ReadinessResponse represents the readiness response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Database  *PoolStats        `json:"database,omitempty"`
	Queue     *QueueStats       `json:"persistence_queue,omitempty"`
}

// PoolStats summarizes the database connection pool
type PoolStats struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// QueueStats summarizes the best-effort persistence queue
type QueueStats struct {
	PendingEvents int `json:"pending_events"`
	BufferSize    int `json:"buffer_size"`
	Workers       int `json:"workers"`
}

// Database is the store as seen by readiness checks
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// PersistenceQueue reports the state of queued writes
type PersistenceQueue interface {
	GetStats() persistence.Stats
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db             Database // nil when no store is configured
	queue          PersistenceQueue
	gatherer       prometheus.Gatherer
	service        string
	prometheusPort int
	logger         *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil.
func NewHealthHandler(db Database, gatherer prometheus.Gatherer, service string, prometheusPort int, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:             db,
		gatherer:       gatherer,
		service:        service,
		prometheusPort: prometheusPort,
		logger:         logger,
	}
}

// WithQueue adds the persistence queue to readiness
func (h *HealthHandler) WithQueue(queue PersistenceQueue) *HealthHandler {
	h.queue = queue
	return h
}

// HandleHealth handles GET /health
// Liveness only: always 200 while the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, HealthResponse{
		Status:          "healthy",
		Service:         h.service,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Monitoring:      "prometheus",
		MetricsEndpoint: "/metrics",
		PrometheusPort:  h.prometheusPort,
	})
}

// HandleReadiness handles GET /health/ready
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true
	response := ReadinessResponse{}

	switch {
	case h.db == nil:
		checks["database"] = "not_configured"
	default:
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("database health check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			allHealthy = false
		} else {
			checks["database"] = "healthy"
		}
		stats := h.db.Stats()
		response.Database = &PoolStats{
			OpenConnections: stats.OpenConnections,
			InUse:           stats.InUse,
			Idle:            stats.Idle,
			WaitCount:       stats.WaitCount,
		}
	}

	if h.queue != nil {
		stats := h.queue.GetStats()
		if stats.Started {
			checks["persistence_queue"] = "healthy"
		} else {
			checks["persistence_queue"] = "stopped"
			allHealthy = false
		}
		response.Queue = &QueueStats{
			PendingEvents: stats.PendingEvents,
			BufferSize:    stats.BufferSize,
			Workers:       stats.WorkerCount,
		}
	}

	if h.gatherer != nil {
		if _, err := h.gatherer.Gather(); err != nil {
			h.logger.Warn("metrics registry check failed", zap.Error(err))
			checks["metrics"] = "unhealthy"
			allHealthy = false
		} else {
			checks["metrics"] = "healthy"
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response.Status = status
	response.Timestamp = time.Now().UTC().Format(time.RFC3339)
	response.Checks = checks

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
