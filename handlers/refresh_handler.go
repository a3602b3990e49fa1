package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/mlops-service/internal/observability"
	"github.com/upb/mlops-service/services/replay"
	"github.com/upb/mlops-service/utils"
	"go.uber.org/zap"
)

// ReplayService defines the interface for rebuilding metrics from storage
type ReplayService interface {
	Refresh(ctx context.Context) (*replay.Result, error)
}

// RefreshResponse reports the outcome of a refresh
type RefreshResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Replayed  int    `json:"replayed"`
	Skipped   int    `json:"skipped"`
	Timestamp string `json:"timestamp"`
}

// RefreshHandler handles metric refresh requests
type RefreshHandler struct {
	service ReplayService
	logger  *zap.Logger
}

// NewRefreshHandler creates a new RefreshHandler
func NewRefreshHandler(service ReplayService, logger *zap.Logger) *RefreshHandler {
	return &RefreshHandler{
		service: service,
		logger:  logger,
	}
}

// HandleRefresh handles POST /refresh-metrics
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Refresh(r.Context())
	if err != nil {
		observability.WithRequest(r.Context(), h.logger).Error("metrics refresh failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Failed to refresh metrics")
		return
	}

	_ = utils.WriteOK(w, RefreshResponse{
		Status:    result.Status,
		Message:   result.Message,
		Replayed:  result.Replayed,
		Skipped:   result.Skipped,
		Timestamp: result.Timestamp.UTC().Format(time.RFC3339),
	})
}
