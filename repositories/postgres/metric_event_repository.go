package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/upb/mlops-service/models"
	"github.com/upb/mlops-service/repositories"
	"go.uber.org/zap"
)

var metricEventsTable = models.MetricEvent{}.TableName()

// MetricEventRepository implements the repositories.MetricEventRepository interface
type MetricEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewMetricEventRepository creates a new metric event repository
func NewMetricEventRepository(db *DB, logger *zap.Logger) repositories.MetricEventRepository {
	return &MetricEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a metric event.
// response_time_ms is an INTEGER column, so fractional milliseconds are rounded.
func (r *MetricEventRepository) Insert(ctx context.Context, e *models.MetricEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (
			event_id, business_id, conversation_id, session_id, response_time_ms,
			success_rate, tokens_used, prompt_tokens, completion_tokens, api_cost_usd,
			model_name, intent_detected, appointment_requested, human_handoff_requested,
			appointment_booked, user_message_length, ai_response_length, response_type, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`, metricEventsTable)

	var responseTimeMs int64
	if e.ResponseTimeMs != nil {
		responseTimeMs = int64(math.Round(*e.ResponseTimeMs))
	}
	var tokensUsed int64
	if e.TokensUsed != nil {
		tokensUsed = *e.TokensUsed
	}

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Business(),
		nullString(e.ConversationID),
		nullString(e.SessionID),
		responseTimeMs,
		e.SuccessRate,
		tokensUsed,
		e.PromptTokens,
		e.CompletionTokens,
		e.APICostUSD,
		e.ModelName,
		e.Intent(),
		e.AppointmentRequested,
		e.HumanHandoffRequested,
		e.AppointmentBooked,
		e.UserMessageLength,
		e.AIResponseLength,
		e.Response(),
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric event: %w", err)
	}

	r.logger.Debug("metric event stored",
		zap.String("event_id", e.ID.String()),
		zap.String("business_id", e.Business()))
	return nil
}

// Aggregate retrieves raw totals for a tenant since the given time
func (r *MetricEventRepository) Aggregate(ctx context.Context, businessID string, since time.Time) (*models.EventAggregate, error) {
	query := fmt.Sprintf(`
		SELECT
			COUNT(*) as total_conversations,
			COALESCE(SUM(response_time_ms), 0) as sum_response_time_ms,
			COALESCE(SUM(tokens_used), 0) as sum_tokens_used,
			COALESCE(SUM(api_cost_usd), 0) as sum_api_cost_usd,
			COUNT(CASE WHEN appointment_requested THEN 1 END) as appointment_requests,
			COUNT(CASE WHEN appointment_booked THEN 1 END) as appointments_booked,
			COUNT(CASE WHEN human_handoff_requested THEN 1 END) as human_handoffs
		FROM %s
		WHERE business_id = $1 AND created_at >= $2
	`, metricEventsTable)

	agg := &models.EventAggregate{}
	err := r.db.QueryRowContext(ctx, query, businessID, since).Scan(
		&agg.Count,
		&agg.SumResponseTimeMs,
		&agg.SumTokensUsed,
		&agg.SumAPICostUSD,
		&agg.AppointmentRequests,
		&agg.AppointmentsBooked,
		&agg.HumanHandoffs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metric events: %w", err)
	}

	return agg, nil
}

// ListAfter retrieves a page of events in log order for replay
func (r *MetricEventRepository) ListAfter(ctx context.Context, after repositories.Cursor, until time.Time, limit int) ([]*models.MetricEvent, error) {
	query := fmt.Sprintf(`
		SELECT id, event_id, business_id, response_time_ms, tokens_used, api_cost_usd,
		       success_rate, model_name, intent_detected, response_type,
		       appointment_requested, appointment_booked, human_handoff_requested, created_at
		FROM %s
		WHERE (created_at, id) > ($1, $2) AND created_at < $3
		ORDER BY created_at ASC, id ASC
		LIMIT $4
	`, metricEventsTable)

	rows, err := r.db.QueryContext(ctx, query, after.CreatedAt, after.Seq, until, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list metric events: %w", err)
	}
	defer rows.Close()

	var events []*models.MetricEvent
	for rows.Next() {
		e, err := scanMetricEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metric events: %w", err)
	}

	return events, nil
}

func scanMetricEvent(rows *sql.Rows) (*models.MetricEvent, error) {
	var (
		e            models.MetricEvent
		eventID      uuid.NullUUID
		businessID   string
		responseTime float64
		tokensUsed   int64
		apiCost      sql.NullFloat64
		successRate  sql.NullFloat64
	)

	err := rows.Scan(
		&e.Seq,
		&eventID,
		&businessID,
		&responseTime,
		&tokensUsed,
		&apiCost,
		&successRate,
		&e.ModelName,
		&e.IntentDetected,
		&e.ResponseType,
		&e.AppointmentRequested,
		&e.AppointmentBooked,
		&e.HumanHandoffRequested,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan metric event: %w", err)
	}

	if eventID.Valid {
		e.ID = eventID.UUID
	}
	e.BusinessID = &businessID
	e.ResponseTimeMs = &responseTime
	e.TokensUsed = &tokensUsed
	if apiCost.Valid {
		e.APICostUSD = &apiCost.Float64
	}
	if successRate.Valid {
		e.SuccessRate = &successRate.Float64
	}

	return &e, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
