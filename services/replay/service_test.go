package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/mlops-service/internal/observability"
	"github.com/upb/mlops-service/models"
	"github.com/upb/mlops-service/repositories"
	"github.com/upb/mlops-service/services"
	"go.uber.org/zap"
)

// MockMetricEventRepository is a mock implementation of MetricEventRepository
type MockMetricEventRepository struct {
	mock.Mock
}

func (m *MockMetricEventRepository) Insert(ctx context.Context, event *models.MetricEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockMetricEventRepository) Aggregate(ctx context.Context, businessID string, since time.Time) (*models.EventAggregate, error) {
	args := m.Called(ctx, businessID, since)
	if agg := args.Get(0); agg != nil {
		return agg.(*models.EventAggregate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMetricEventRepository) ListAfter(ctx context.Context, after repositories.Cursor, until time.Time, limit int) ([]*models.MetricEvent, error) {
	args := m.Called(ctx, after, until, limit)
	if events := args.Get(0); events != nil {
		return events.([]*models.MetricEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

var startedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func stored(seq int64, business string, tokens int64) *models.MetricEvent {
	ms := 1000.0
	return &models.MetricEvent{
		Seq:            seq,
		CreatedAt:      startedAt.Add(-time.Duration(100-seq) * time.Minute),
		BusinessID:     &business,
		ResponseTimeMs: &ms,
		TokensUsed:     &tokens,
		ModelName:      "gemini-1.5-flash",
		IntentDetected: "booking",
		ResponseType:   "answer",
	}
}

func atSeq(seq int64) interface{} {
	return mock.MatchedBy(func(c repositories.Cursor) bool { return c.Seq == seq })
}

func newRegistry(t *testing.T) *observability.Registry {
	t.Helper()
	reg, err := observability.NewRegistry(observability.RegistryOptions{ServiceName: "svc", Version: "test"})
	require.NoError(t, err)
	return reg
}

func requestsFor(t *testing.T, reg *observability.Registry) float64 {
	t.Helper()
	families, err := reg.Gatherer().Gather()
	require.NoError(t, err)
	var total float64
	for _, f := range families {
		if f.GetName() == observability.MetricRequests {
			for _, m := range f.GetMetric() {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestService_RefreshWithoutStore(t *testing.T) {
	svc := NewService(nil, newRegistry(t), startedAt, Config{Window: 24 * time.Hour}, zap.NewNop())

	result, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusWarning, result.Status)
	assert.Equal(t, 0, result.Replayed)
	assert.False(t, result.Timestamp.IsZero())
}

func TestService_RefreshPagesThroughLog(t *testing.T) {
	reg := newRegistry(t)
	repo := new(MockMetricEventRepository)

	window := 30 * 24 * time.Hour
	first := mock.MatchedBy(func(c repositories.Cursor) bool {
		return c.Seq == 0 && c.CreatedAt.Equal(startedAt.Add(-window))
	})
	repo.On("ListAfter", mock.Anything, first, startedAt, 2).
		Return([]*models.MetricEvent{stored(1, "a", 10), stored(2, "a", 20)}, nil).Once()
	repo.On("ListAfter", mock.Anything, atSeq(2), startedAt, 2).
		Return([]*models.MetricEvent{stored(3, "b", 5)}, nil).Once()

	svc := NewService(repo, reg, startedAt, Config{Window: window, BatchSize: 2}, zap.NewNop())

	result, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, 3, result.Replayed)
	assert.Equal(t, 3.0, requestsFor(t, reg))
	repo.AssertExpectations(t)

	// A second refresh resumes after the last applied event and adds nothing
	repo.On("ListAfter", mock.Anything, atSeq(3), startedAt, 2).
		Return([]*models.MetricEvent{}, nil).Once()

	result, err = svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Replayed)
	assert.Equal(t, 3.0, requestsFor(t, reg))
	repo.AssertExpectations(t)
}

func TestService_RefreshSkipsUnappliableEvents(t *testing.T) {
	reg := newRegistry(t)
	repo := new(MockMetricEventRepository)

	repo.On("ListAfter", mock.Anything, atSeq(0), startedAt, DefaultBatchSize).
		Return([]*models.MetricEvent{stored(1, "a", -1), stored(2, "a", 4)}, nil).Once()

	svc := NewService(repo, reg, startedAt, Config{Window: time.Hour}, zap.NewNop())

	result, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Replayed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1.0, requestsFor(t, reg))
}

func TestService_RefreshStoreError(t *testing.T) {
	reg := newRegistry(t)
	repo := new(MockMetricEventRepository)

	repo.On("ListAfter", mock.Anything, atSeq(0), startedAt, 1).
		Return([]*models.MetricEvent{stored(1, "a", 1)}, nil).Once()
	repo.On("ListAfter", mock.Anything, atSeq(1), startedAt, 1).
		Return(nil, errors.New("connection reset")).Once()

	svc := NewService(repo, reg, startedAt, Config{Window: time.Hour, BatchSize: 1}, zap.NewNop())

	_, err := svc.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, services.IsInternalError(err))

	// The applied page is not replayed again on retry
	repo.On("ListAfter", mock.Anything, atSeq(1), startedAt, 1).
		Return([]*models.MetricEvent{}, nil).Once()

	result, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Replayed)
	assert.Equal(t, 1.0, requestsFor(t, reg))
}
