package repositories

import (
	"context"
	"time"

	"github.com/upb/mlops-service/models"
)

// Cursor is a keyset position in the event log. Events are ordered by
// creation time and then by their database sequence number.
type Cursor struct {
	CreatedAt time.Time
	Seq       int64
}

// MetricEventRepository handles persisted metric events
type MetricEventRepository interface {
	// Insert stores a single event
	Insert(ctx context.Context, event *models.MetricEvent) error

	// Aggregate computes the raw totals for one tenant since the given time
	Aggregate(ctx context.Context, businessID string, since time.Time) (*models.EventAggregate, error)

	// ListAfter returns up to limit events strictly after the cursor and
	// strictly before until, oldest first
	ListAfter(ctx context.Context, after Cursor, until time.Time, limit int) ([]*models.MetricEvent, error)
}
