package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/mlops-service/config"
	"go.uber.org/zap"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return Wrap(db, logger), nil
}

// Wrap adopts an already opened pool
func Wrap(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// schema creates ai_metrics or upgrades the chat application's table in
// place. That table declares session_id, success_rate, api_cost_usd and the
// message lengths NOT NULL, but events may omit them and are stored with
// NULLs, so those constraints are dropped.
const schema = `
	CREATE TABLE IF NOT EXISTS ai_metrics (
		id SERIAL PRIMARY KEY,
		event_id UUID UNIQUE,
		business_id VARCHAR(255) NOT NULL,
		conversation_id VARCHAR(255),
		session_id VARCHAR(255),
		response_time_ms INTEGER NOT NULL,
		success_rate DECIMAL(5, 4),
		tokens_used INTEGER NOT NULL,
		prompt_tokens INTEGER,
		completion_tokens INTEGER,
		api_cost_usd DECIMAL(10, 6),
		model_name VARCHAR(100) NOT NULL,
		intent_detected VARCHAR(50) NOT NULL,
		appointment_requested BOOLEAN NOT NULL DEFAULT FALSE,
		human_handoff_requested BOOLEAN NOT NULL DEFAULT FALSE,
		appointment_booked BOOLEAN NOT NULL DEFAULT FALSE,
		user_message_length INTEGER,
		ai_response_length INTEGER,
		response_type VARCHAR(50) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	ALTER TABLE ai_metrics ADD COLUMN IF NOT EXISTS event_id UUID UNIQUE;

	ALTER TABLE ai_metrics
		ALTER COLUMN session_id DROP NOT NULL,
		ALTER COLUMN success_rate DROP NOT NULL,
		ALTER COLUMN api_cost_usd DROP NOT NULL,
		ALTER COLUMN user_message_length DROP NOT NULL,
		ALTER COLUMN ai_response_length DROP NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_ai_metrics_business_id ON ai_metrics(business_id);
	CREATE INDEX IF NOT EXISTS idx_ai_metrics_created_at ON ai_metrics(created_at);
`

// InitSchema initializes the database schema
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}
