// Package postgresql provides the PostgreSQL persistence implementation for
// workflow definitions and run history.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// Persistence implements persistence.Persistence backed by PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
	runRepo      *RunRepository
}

// NewPersistence connects, migrates, and returns a ready store.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: &WorkflowRepository{db: database, logger: logger},
		runRepo:      &RunRepository{db: database, logger: logger},
	}

	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository { return p.workflowRepo }
func (p *Persistence) RunRepository() persistence.RunRepository           { return p.runRepo }

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db == nil {
		return nil
	}

	if err := p.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}

const currentSchemaVersion = 1

var migrations = map[int]string{
	1: `
		CREATE TABLE IF NOT EXISTS workflows (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			enabled    BOOLEAN NOT NULL DEFAULT FALSE,
			schedule   TEXT NOT NULL DEFAULT '',
			nodes      JSONB NOT NULL DEFAULT '[]',
			variables  JSONB NOT NULL DEFAULT '{}',
			metadata   JSONB NOT NULL DEFAULT '{}',
			stats      JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP WITH TIME ZONE NOT NULL,
			updated_at TIMESTAMP WITH TIME ZONE NOT NULL
		);

		CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			status      TEXT NOT NULL,
			started_at  TIMESTAMP WITH TIME ZONE NOT NULL,
			ended_at    TIMESTAMP WITH TIME ZONE,
			log         JSONB NOT NULL DEFAULT '[]',
			error       TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_runs_workflow_started
			ON runs (workflow_id, started_at DESC);
	`,
}

func (p *Persistence) migrate(ctx context.Context) error {
	p.logger.InfoContext(ctx, "Starting database migrations")

	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var version int
	err = p.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to query current schema version: %w", err)
	}

	for next := version + 1; next <= currentSchemaVersion; next++ {
		if _, err := p.db.ExecContext(ctx, migrations[next]); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", next, err)
		}

		if _, err := p.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", next); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", next, err)
		}

		p.logger.InfoContext(ctx, "Applied migration", "version", next)
	}

	return nil
}
