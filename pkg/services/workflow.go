package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/schemas"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

// Workflow orchestrates definition lifecycle, manual runs and run history.
// Saves are all-or-nothing: a definition that fails validation never reaches
// the store, and the previously stored version stays in effect.
type Workflow struct {
	persistence persistence.Persistence
	engine      *workflow.Engine
	scheduler   *scheduler.Scheduler
}

// NewWorkflow creates the service. The scheduler may be nil (API-only
// deployments); schedule registration is then skipped.
func NewWorkflow(p persistence.Persistence, engine *workflow.Engine, sched *scheduler.Scheduler) *Workflow {
	return &Workflow{
		persistence: p,
		engine:      engine,
		scheduler:   sched,
	}
}

// HealthCheck reports the persistence layer's health.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if err := w.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns all stored workflow definitions.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return w.persistence.WorkflowRepository().List(ctx)
}

// Get returns one definition by ID.
func (w *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return w.persistence.WorkflowRepository().GetByID(ctx, id)
}

// Create validates and stores a new definition. An empty ID is assigned.
func (w *Workflow) Create(ctx context.Context, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, &ServiceError{Op: "workflow.create", Err: ErrWorkflowNil}
	}

	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	wf.CreatedAt = now
	wf.UpdatedAt = now
	wf.Stats = models.WorkflowStats{}

	if err := w.validate(wf); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, &ServiceError{Op: "workflow.create", Err: err}
	}

	w.syncSchedule(wf)

	return wf, nil
}

// Update replaces a definition wholesale. There are no partial updates: the
// caller sends the full graph, it validates as a whole or the update is
// rejected. CreatedAt and run counters survive from the stored version.
func (w *Workflow) Update(ctx context.Context, id string, wf *models.Workflow) (*models.Workflow, error) {
	if wf == nil {
		return nil, &ServiceError{Op: "workflow.update", Err: ErrWorkflowNil}
	}

	if wf.ID != "" && wf.ID != id {
		return nil, &ServiceError{Op: "workflow.update", Err: ErrIDMismatch}
	}

	existing, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wf.ID = id
	wf.CreatedAt = existing.CreatedAt
	wf.Stats = existing.Stats
	wf.UpdatedAt = time.Now().UTC()

	if err := w.validate(wf); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, &ServiceError{Op: "workflow.update", Err: err}
	}

	w.syncSchedule(wf)

	return wf, nil
}

// Delete removes a definition and its schedule registration.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if err := w.persistence.WorkflowRepository().Delete(ctx, id); err != nil {
		return err
	}

	if w.scheduler != nil {
		w.scheduler.Unregister(id)
	}

	return nil
}

// RunNow starts a run outside any schedule. triggerNodeID may be empty.
func (w *Workflow) RunNow(ctx context.Context, id string, overrides map[string]any, triggerNodeID string) (*models.RunRecord, error) {
	return w.engine.RunNow(ctx, id, overrides, triggerNodeID)
}

// RunHistory returns the newest runs of a workflow, most recent first.
func (w *Workflow) RunHistory(ctx context.Context, id string, limit int) ([]*models.RunRecord, error) {
	if _, err := w.persistence.WorkflowRepository().GetByID(ctx, id); err != nil {
		return nil, err
	}

	return w.persistence.RunRepository().ListByWorkflow(ctx, id, limit)
}

// GetRun returns a single run record.
func (w *Workflow) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	return w.persistence.RunRepository().GetByID(ctx, runID)
}

func (w *Workflow) validate(wf *models.Workflow) error {
	if err := workflow.Validate(wf); err != nil {
		return err
	}

	if err := schemas.ValidateWorkflowConfigs(wf); err != nil {
		return &StructuralConfigError{Err: err}
	}

	return nil
}

// syncSchedule keeps the cron registration in step with the saved
// definition. Registration failures cannot happen for a validated spec, but
// the scheduler still reports them; the save itself is already committed.
func (w *Workflow) syncSchedule(wf *models.Workflow) {
	if w.scheduler == nil {
		return
	}

	if wf.Enabled && wf.Schedule != "" {
		_ = w.scheduler.Register(wf.ID, wf.Schedule)

		return
	}

	w.scheduler.Unregister(wf.ID)
}
