package postgres

import (
	"context"

	"github.com/upb/mlops-service/config"
	"go.uber.org/zap"
)

// RepositoryFactory owns the pool the repositories share
type RepositoryFactory struct {
	db *DB
}

// NewRepositoryFactory opens the database and, when configured, creates the schema
func NewRepositoryFactory(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}

	if cfg.InitSchema {
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &RepositoryFactory{db: db}, nil
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// Close closes the database connection
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
