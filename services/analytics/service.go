package analytics

import (
	"context"
	"time"

	"github.com/upb/mlops-service/models"
	"github.com/upb/mlops-service/repositories"
	"github.com/upb/mlops-service/services"
	"github.com/upb/mlops-service/utils"
	"go.uber.org/zap"
)

// Window is the period the summary covers
const Window = 30 * 24 * time.Hour

const sampleNote = "Sample data. Configure PERSISTENCE_MODE=postgres and DATABASE_URL for figures derived from stored events."

// Service builds per-tenant analytics summaries
type Service struct {
	repo       repositories.MetricEventRepository // nil when no store is configured
	metricsURL string
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates a new analytics service. repo may be nil.
func NewService(repo repositories.MetricEventRepository, metricsURL string, logger *zap.Logger) *Service {
	return &Service{
		repo:       repo,
		metricsURL: metricsURL,
		logger:     logger,
		now:        time.Now,
	}
}

// Summary returns the last 30 days of analytics for a tenant
func (s *Service) Summary(ctx context.Context, businessID string) (*models.AnalyticsSummary, error) {
	if err := utils.ValidateRequired(businessID, "business_id"); err != nil {
		return nil, services.NewMissingFieldError("business_id")
	}
	if err := utils.ValidateStringLength(businessID, "business_id", 0, 255); err != nil {
		return nil, services.NewValidationError(err.Error())
	}

	now := s.now().UTC()
	summary := &models.AnalyticsSummary{
		BusinessID:           businessID,
		Period:               models.AnalyticsPeriod,
		Monitoring:           "prometheus",
		PrometheusMetricsURL: s.metricsURL,
		Timestamp:            now,
	}

	if s.repo == nil {
		summary.Metrics = models.SampleAnalyticsMetrics()
		summary.Sample = true
		summary.Note = sampleNote
		return summary, nil
	}

	agg, err := s.repo.Aggregate(ctx, businessID, now.Add(-Window))
	if err != nil {
		s.logger.Error("failed to aggregate analytics",
			zap.String("business_id", businessID),
			zap.Error(err))
		return nil, services.WrapInternal("failed to load analytics", err)
	}

	summary.Metrics = agg.ToMetrics()
	return summary, nil
}
