// Package memory provides an in-memory persistence implementation used by
// tests and as the default store when no persistence URL is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

type Persistence struct {
	workflows *workflowRepository
	runs      *runRepository
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		workflows: &workflowRepository{items: make(map[string]*models.Workflow)},
		runs:      &runRepository{items: make(map[string]*models.RunRecord)},
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository { return p.workflows }
func (p *Persistence) RunRepository() persistence.RunRepository           { return p.runs }
func (p *Persistence) HealthCheck(_ context.Context) error                { return nil }
func (p *Persistence) Close(_ context.Context) error                      { return nil }

type workflowRepository struct {
	mu    sync.RWMutex
	items map[string]*models.Workflow
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflow, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	return cloneWorkflow(workflow), nil
}

func (r *workflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[workflow.ID] = cloneWorkflow(workflow)

	return nil
}

func (r *workflowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	delete(r.items, id)

	return nil
}

func (r *workflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	workflows := make([]*models.Workflow, 0, len(r.items))
	for _, workflow := range r.items {
		workflows = append(workflows, cloneWorkflow(workflow))
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (r *workflowRepository) ListEnabledWithSchedule(ctx context.Context) ([]*models.Workflow, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	scheduled := make([]*models.Workflow, 0)
	for _, workflow := range all {
		if workflow.Enabled && workflow.Schedule != "" {
			scheduled = append(scheduled, workflow)
		}
	}

	return scheduled, nil
}

type runRepository struct {
	mu    sync.RWMutex
	items map[string]*models.RunRecord
}

func (r *runRepository) Create(_ context.Context, run *models.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[run.ID] = cloneRun(run)

	return nil
}

func (r *runRepository) AppendLog(_ context.Context, runID string, entry models.RunLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.items[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, persistence.ErrRunNotFound)
	}

	run.Log = append(run.Log, entry)

	return nil
}

func (r *runRepository) Finalize(_ context.Context, runID string, status models.RunStatus, runErr string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.items[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, persistence.ErrRunNotFound)
	}

	if run.Status.Terminal() {
		return fmt.Errorf("run %s: %w", runID, persistence.ErrRunFinalized)
	}

	run.Status = status
	run.Error = runErr
	run.EndedAt = &endedAt

	return nil
}

func (r *runRepository) GetByID(_ context.Context, runID string) (*models.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.items[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, persistence.ErrRunNotFound)
	}

	return cloneRun(run), nil
}

func (r *runRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*models.RunRecord, 0)
	for _, run := range r.items {
		if run.WorkflowID == workflowID {
			runs = append(runs, cloneRun(run))
		}
	}

	// Newest first.
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}

// cloneWorkflow round-trips through JSON so callers never alias stored state.
func cloneWorkflow(workflow *models.Workflow) *models.Workflow {
	var out models.Workflow

	data, err := json.Marshal(workflow)
	if err != nil {
		copied := *workflow

		return &copied
	}

	if err := json.Unmarshal(data, &out); err != nil {
		copied := *workflow

		return &copied
	}

	return &out
}

func cloneRun(run *models.RunRecord) *models.RunRecord {
	out := *run
	out.Log = make([]models.RunLogEntry, len(run.Log))
	copy(out.Log, run.Log)

	return &out
}
