package tracking

import (
	"context"
	"time"

	"github.com/upb/mlops-service/internal/observability"
	"github.com/upb/mlops-service/models"
	"github.com/upb/mlops-service/services"
	"github.com/upb/mlops-service/services/persistence"
	"github.com/upb/mlops-service/utils"
	"go.uber.org/zap"
)

// TrackResult acknowledges an accepted metric event
type TrackResult struct {
	PrometheusUpdated bool
	Persisted         bool
	Timestamp         time.Time
}

// Config holds the persistence failure policy
type Config struct {
	// Authoritative fails Track when the notifier fails
	Authoritative bool
}

// Service validates metric events and folds them into the registry
type Service struct {
	registry *observability.Registry
	notifier persistence.Notifier
	config   Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new tracking service
func NewService(registry *observability.Registry, notifier persistence.Notifier, config Config, logger *zap.Logger) *Service {
	return &Service{
		registry: registry,
		notifier: notifier,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Track validates the event, applies it to every affected instrument and
// hands it to the persistence notifier.
func (s *Service) Track(ctx context.Context, event *models.MetricEvent) (*TrackResult, error) {
	if err := s.Validate(event); err != nil {
		s.registry.RecordRejected(observability.RejectReasonValidation)
		return nil, err
	}

	now := s.now().UTC()
	event.Normalize(s.registry.DefaultModel())
	event.Stamp(now)

	logger := observability.WithRequest(ctx, s.logger).With(
		zap.String("business_id", event.Business()),
		zap.String("event_id", event.ID.String()))

	if err := s.registry.Apply(event); err != nil {
		logger.Error("failed to update metrics", zap.Error(err))
		return nil, services.WrapInternal("failed to update metrics", err)
	}

	result := &TrackResult{
		PrometheusUpdated: true,
		Timestamp:         now,
	}

	if err := s.notifier.Notify(ctx, event); err != nil {
		if s.config.Authoritative {
			logger.Error("failed to persist metrics", zap.Error(err))
			return nil, services.WrapInternal("failed to persist metrics", err)
		}
		logger.Warn("metrics not persisted", zap.Error(err))
		return result, nil
	}

	result.Persisted = true
	logger.Debug("metrics tracked",
		zap.Float64("response_time_ms", *event.ResponseTimeMs),
		zap.Int64("tokens_used", *event.TokensUsed))

	return result, nil
}

// Reject counts a payload refused before it could be decoded into an event
// and returns err unchanged.
func (s *Service) Reject(ctx context.Context, err error) error {
	s.registry.RecordRejected(observability.RejectReasonValidation)
	observability.WithRequest(ctx, s.logger).Debug("rejected metrics payload", zap.Error(err))
	return err
}

// Validate reports the first missing required field, or any other
// constraint violation, as a validation error.
func (s *Service) Validate(event *models.MetricEvent) error {
	if event == nil {
		return services.NewValidationError("No metrics data provided")
	}

	err := utils.ValidateStruct(event)
	if err == nil {
		return nil
	}

	if field, ok := utils.FirstMissingField(err); ok {
		return services.NewMissingFieldError(field)
	}

	verr := services.NewValidationError("Validation failed")
	for field, msg := range utils.GetValidationFields(err) {
		verr.WithDetail(field, msg)
	}
	return verr
}
