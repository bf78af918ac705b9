package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

// RunRepository handles run record rows. The log is a JSONB array appended
// with || so concurrent appends from one engine process stay ordered by
// statement execution.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *RunRepository) Create(ctx context.Context, run *models.RunRecord) error {
	log, err := json.Marshal(run.Log)
	if err != nil {
		return fmt.Errorf("failed to encode run log: %w", err)
	}

	query := `
		INSERT INTO runs (id, workflow_id, status, started_at, ended_at, log, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		run.ID, run.WorkflowID, string(run.Status),
		run.StartedAt, run.EndedAt, log, run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to create run %s: %w", run.ID, err)
	}

	return nil
}

func (r *RunRepository) AppendLog(ctx context.Context, runID string, entry models.RunLogEntry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}

	query := `UPDATE runs SET log = log || $2::jsonb WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, runID, encoded)
	if err != nil {
		return fmt.Errorf("failed to append log for run %s: %w", runID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read append result: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("run %s: %w", runID, persistence.ErrRunNotFound)
	}

	return nil
}

func (r *RunRepository) Finalize(ctx context.Context, runID string, status models.RunStatus, runErr string, endedAt time.Time) error {
	query := `
		UPDATE runs SET status = $2, error = $3, ended_at = $4
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, runID, string(status), runErr, endedAt, string(models.RunStatusRunning))
	if err != nil {
		return fmt.Errorf("failed to finalize run %s: %w", runID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read finalize result: %w", err)
	}

	if affected == 0 {
		if _, err := r.GetByID(ctx, runID); err != nil {
			return err
		}

		return fmt.Errorf("run %s: %w", runID, persistence.ErrRunFinalized)
	}

	return nil
}

func (r *RunRepository) GetByID(ctx context.Context, runID string) (*models.RunRecord, error) {
	query := `SELECT id, workflow_id, status, started_at, ended_at, log, error FROM runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, persistence.ErrRunNotFound)
	}

	return run, err
}

func (r *RunRepository) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.RunRecord, error) {
	query := `
		SELECT id, workflow_id, status, started_at, ended_at, log, error
		FROM runs
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	args := []any{workflowID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.RunRecord, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func scanRun(row rowScanner) (*models.RunRecord, error) {
	var (
		run     models.RunRecord
		status  string
		endedAt sql.NullTime
		log     []byte
	)

	err := row.Scan(&run.ID, &run.WorkflowID, &status, &run.StartedAt, &endedAt, &log, &run.Error)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	if endedAt.Valid {
		t := endedAt.Time

		run.EndedAt = &t
	}

	if err := json.Unmarshal(log, &run.Log); err != nil {
		return nil, fmt.Errorf("failed to decode run log: %w", err)
	}

	return &run, nil
}
