package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/mlops-service/internal/observability"
	"github.com/upb/mlops-service/models"
	"github.com/upb/mlops-service/utils"
	"go.uber.org/zap"
)

// AnalyticsService defines the interface for per-tenant analytics
type AnalyticsService interface {
	Summary(ctx context.Context, businessID string) (*models.AnalyticsSummary, error)
}

// AnalyticsHandler handles analytics requests
type AnalyticsHandler struct {
	service AnalyticsService
	logger  *zap.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(service AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSummary handles GET /analytics/{business_id}
func (h *AnalyticsHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "business_id")

	summary, err := h.service.Summary(r.Context(), businessID)
	if err != nil {
		HandleServiceError(w, err, observability.WithRequest(r.Context(), h.logger))
		return
	}

	_ = utils.WriteOK(w, summary)
}
