package persistence

import (
	"context"
	"fmt"

	"github.com/upb/mlops-service/models"
	"github.com/upb/mlops-service/repositories"
	"go.uber.org/zap"
)

// Notifier hands an accepted metric event to the durable store
type Notifier interface {
	Notify(ctx context.Context, event *models.MetricEvent) error
}

// NoopNotifier accepts every event without storing it
type NoopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier creates a notifier that only logs
func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

// Notify implements Notifier
func (n *NoopNotifier) Notify(_ context.Context, event *models.MetricEvent) error {
	n.logger.Debug("metric event not persisted (noop store)",
		zap.String("business_id", event.Business()))
	return nil
}

// RepositoryNotifier writes each event synchronously
type RepositoryNotifier struct {
	repo   repositories.MetricEventRepository
	logger *zap.Logger
}

// NewRepositoryNotifier creates a notifier backed by the metric event repository
func NewRepositoryNotifier(repo repositories.MetricEventRepository, logger *zap.Logger) *RepositoryNotifier {
	return &RepositoryNotifier{repo: repo, logger: logger}
}

// Notify implements Notifier
func (n *RepositoryNotifier) Notify(ctx context.Context, event *models.MetricEvent) error {
	if err := n.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("persist metric event: %w", err)
	}
	return nil
}
