package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/upb/mlops-service/internal/observability"
	"github.com/upb/mlops-service/models"
	"github.com/upb/mlops-service/services"
	"github.com/upb/mlops-service/services/tracking"
	"github.com/upb/mlops-service/utils"
	"go.uber.org/zap"
)

// MaxTrackBodyBytes bounds a single /track payload
const MaxTrackBodyBytes = 1 << 20

// TrackingService defines the interface for metric ingestion
type TrackingService interface {
	Track(ctx context.Context, event *models.MetricEvent) (*tracking.TrackResult, error)
	Reject(ctx context.Context, err error) error
}

// TrackResponse acknowledges an accepted event
type TrackResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	PrometheusUpdated bool   `json:"prometheus_updated"`
	Timestamp         string `json:"timestamp"`
}

// TrackHandler handles metric ingestion requests
type TrackHandler struct {
	service TrackingService
	logger  *zap.Logger
}

// NewTrackHandler creates a new TrackHandler
func NewTrackHandler(service TrackingService, logger *zap.Logger) *TrackHandler {
	return &TrackHandler{
		service: service,
		logger:  logger,
	}
}

// HandleTrack handles POST /track
func (h *TrackHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	logger := observability.WithRequest(r.Context(), h.logger)

	event, err := decodeEvent(w, r)
	if err != nil {
		HandleServiceError(w, h.service.Reject(r.Context(), err), logger)
		return
	}

	result, err := h.service.Track(r.Context(), event)
	if err != nil {
		HandleServiceError(w, err, logger)
		return
	}

	_ = utils.WriteOK(w, TrackResponse{
		Status:            "success",
		Message:           "Metrics tracked successfully",
		PrometheusUpdated: result.PrometheusUpdated,
		Timestamp:         result.Timestamp.UTC().Format(time.RFC3339),
	})
}

// decodeEvent parses the request body. Required fields are checked on the
// raw object so a missing field outranks a wrongly typed one.
func decodeEvent(w http.ResponseWriter, r *http.Request) (*models.MetricEvent, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxTrackBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, services.NewValidationError("Request body too large")
		}
		return nil, services.NewValidationError("Invalid JSON body")
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, services.NewValidationError("No metrics data provided")
	}

	// null and {} carry no data; anything that is not an object is malformed
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, services.NewValidationError("Invalid JSON body")
	}
	if len(fields) == 0 {
		return nil, services.NewValidationError("No metrics data provided")
	}

	for _, name := range models.RequiredFields {
		raw, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return nil, services.NewMissingFieldError(name)
		}
	}

	var event models.MetricEvent
	if err := json.Unmarshal(body, &event); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, services.NewValidationError("Invalid value for field: " + typeErr.Field).
				WithDetail("field", typeErr.Field)
		}
		return nil, services.NewValidationError("Invalid JSON body")
	}

	return &event, nil
}
