package replay

import (
	"context"
	"sync"
	"time"

	"github.com/upb/mlops-service/internal/observability"
	"github.com/upb/mlops-service/repositories"
	"github.com/upb/mlops-service/services"
	"go.uber.org/zap"
)

// Result statuses
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
)

// DefaultBatchSize is the page size used when reading the event log
const DefaultBatchSize = 500

// Result describes one refresh
type Result struct {
	Status    string
	Message   string
	Replayed  int
	Skipped   int
	Timestamp time.Time
}

// Config holds replay settings
type Config struct {
	Window    time.Duration // how far before process start to look back
	BatchSize int
}

// Service rebuilds the in-memory registry from persisted events.
//
// Only events created before the process started are replayed; anything
// newer reached the registry through Track. The cursor only moves forward,
// so each stored event is applied at most once per process.
type Service struct {
	repo      repositories.MetricEventRepository // nil when no store is configured
	registry  *observability.Registry
	startedAt time.Time
	batchSize int
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	cursor repositories.Cursor
}

// NewService creates a replay service. repo may be nil.
func NewService(repo repositories.MetricEventRepository, registry *observability.Registry, startedAt time.Time, config Config, logger *zap.Logger) *Service {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	startedAt = startedAt.UTC()

	return &Service{
		repo:      repo,
		registry:  registry,
		startedAt: startedAt,
		batchSize: config.BatchSize,
		logger:    logger,
		now:       time.Now,
		cursor:    repositories.Cursor{CreatedAt: startedAt.Add(-config.Window)},
	}
}

// Refresh replays stored events that have not been applied yet
func (s *Service) Refresh(ctx context.Context) (*Result, error) {
	logger := observability.WithRequest(ctx, s.logger)

	if s.repo == nil {
		return &Result{
			Status:    StatusWarning,
			Message:   "No persistent store configured, using current metrics",
			Timestamp: s.now().UTC(),
		}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &Result{Status: StatusSuccess}
	for {
		events, err := s.repo.ListAfter(ctx, s.cursor, s.startedAt, s.batchSize)
		if err != nil {
			logger.Error("failed to read events for replay",
				zap.Int("replayed", result.Replayed),
				zap.Error(err))
			return nil, services.WrapInternal("failed to refresh metrics", err)
		}

		for _, e := range events {
			if err := s.registry.Apply(e); err != nil {
				logger.Warn("skipping stored event",
					zap.Int64("seq", e.Seq),
					zap.String("business_id", e.Business()),
					zap.Error(err))
				result.Skipped++
			} else {
				result.Replayed++
			}
			s.cursor = repositories.Cursor{CreatedAt: e.CreatedAt, Seq: e.Seq}
		}

		if len(events) < s.batchSize {
			break
		}
	}

	result.Message = "Metrics refreshed from storage"
	result.Timestamp = s.now().UTC()

	logger.Info("metrics replayed from storage",
		zap.Int("replayed", result.Replayed),
		zap.Int("skipped", result.Skipped))

	return result, nil
}
