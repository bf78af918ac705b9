package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// WorkflowRepository handles workflow definition rows. Graph structure
// (nodes, variables, metadata, stats) is stored as JSONB documents.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const workflowColumns = `
	id
  , name
  , enabled
  , schedule
  , nodes
  , variables
  , metadata
  , stats
  , created_at
  , updated_at
`

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := "SELECT " + workflowColumns + " FROM workflows WHERE id = $1"

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, err
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to encode nodes: %w", err)
	}

	variables, err := json.Marshal(orEmptyMap(workflow.Variables))
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}

	metadata, err := json.Marshal(orEmptyMap(workflow.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	stats, err := json.Marshal(workflow.Stats)
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, enabled, schedule, nodes, variables, metadata, stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			enabled = EXCLUDED.enabled,
			schedule = EXCLUDED.schedule,
			nodes = EXCLUDED.nodes,
			variables = EXCLUDED.variables,
			metadata = EXCLUDED.metadata,
			stats = EXCLUDED.stats,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID, workflow.Name, workflow.Enabled, workflow.Schedule,
		nodes, variables, metadata, stats,
		workflow.CreatedAt, workflow.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	return r.list(ctx, "SELECT "+workflowColumns+" FROM workflows ORDER BY created_at")
}

func (r *WorkflowRepository) ListEnabledWithSchedule(ctx context.Context) ([]*models.Workflow, error) {
	return r.list(ctx, "SELECT "+workflowColumns+" FROM workflows WHERE enabled AND schedule <> '' ORDER BY created_at")
}

func (r *WorkflowRepository) list(ctx context.Context, query string) ([]*models.Workflow, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow  models.Workflow
		nodes     []byte
		variables []byte
		metadata  []byte
		stats     []byte
	)

	err := row.Scan(
		&workflow.ID, &workflow.Name, &workflow.Enabled, &workflow.Schedule,
		&nodes, &variables, &metadata, &stats,
		&workflow.CreatedAt, &workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(nodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode nodes: %w", err)
	}

	if err := json.Unmarshal(variables, &workflow.Variables); err != nil {
		return nil, fmt.Errorf("failed to decode variables: %w", err)
	}

	if err := json.Unmarshal(metadata, &workflow.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if err := json.Unmarshal(stats, &workflow.Stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	return &workflow, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
