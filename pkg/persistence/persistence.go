// Package persistence provides the storage abstraction for workflow
// definitions and run history. The engine consumes these interfaces and
// stores no internal state of its own here.
package persistence

import (
	"context"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
)

// WorkflowRepository stores workflow definitions. A definition is returned
// exactly as last validated and saved.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.Workflow, error)

	// ListEnabledWithSchedule returns enabled workflows carrying a
	// schedule spec, for scheduler bootstrap.
	ListEnabledWithSchedule(ctx context.Context) ([]*models.Workflow, error)
}

// RunRepository stores run records and their append-only logs.
type RunRepository interface {
	Create(ctx context.Context, run *models.RunRecord) error
	AppendLog(ctx context.Context, runID string, entry models.RunLogEntry) error
	Finalize(ctx context.Context, runID string, status models.RunStatus, runErr string, endedAt time.Time) error
	GetByID(ctx context.Context, runID string) (*models.RunRecord, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.RunRecord, error)
}

// Persistence aggregates the repositories behind one connectable unit.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	RunRepository() RunRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
