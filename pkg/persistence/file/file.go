// Package file provides file-based persistence: one JSON document per
// workflow under <root>/workflows and per run under <root>/runs. Suitable for
// single-process deployments and local development.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

type Persistence struct {
	root      string
	workflows *workflowRepository
	runs      *runRepository
}

// NewPersistence creates a file store rooted at the given directory. A
// leading "file://" prefix is stripped so persistence URLs work unchanged.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.TrimPrefix(root, "file://")

	for _, dir := range []string{
		filepath.Join(cleanRoot, "workflows"),
		filepath.Join(cleanRoot, "runs"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return &Persistence{
		root:      cleanRoot,
		workflows: &workflowRepository{dir: filepath.Join(cleanRoot, "workflows")},
		runs:      &runRepository{dir: filepath.Join(cleanRoot, "runs")},
	}, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository { return p.workflows }
func (p *Persistence) RunRepository() persistence.RunRepository           { return p.runs }

func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); err != nil {
		return err
	}

	return nil
}

func (p *Persistence) Close(_ context.Context) error { return nil }

// writeJSON writes via a temp file then renames, so readers never observe a
// partially written document.
func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

type workflowRepository struct {
	mu  sync.RWMutex
	dir string
}

func (r *workflowRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *workflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.read(id)
}

func (r *workflowRepository) read(id string) (*models.Workflow, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
		}

		return nil, err
	}

	var workflow models.Workflow
	if err := json.Unmarshal(data, &workflow); err != nil {
		return nil, fmt.Errorf("decode workflow %s: %w", id, err)
	}

	return &workflow, nil
}

func (r *workflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.path(workflow.ID), workflow)
}

func (r *workflowRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := os.Remove(r.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("workflow %s: %w", id, persistence.ErrWorkflowNotFound)
	}

	return err
}

func (r *workflowRepository) List(_ context.Context) ([]*models.Workflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		workflow, err := r.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
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
	mu  sync.Mutex
	dir string
}

func (r *runRepository) path(id string) string {
	return filepath.Join(r.dir, id+".json")
}

func (r *runRepository) Create(_ context.Context, run *models.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.path(run.ID), run)
}

func (r *runRepository) read(id string) (*models.RunRecord, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("run %s: %w", id, persistence.ErrRunNotFound)
		}

		return nil, err
	}

	var run models.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}

	return &run, nil
}

func (r *runRepository) AppendLog(_ context.Context, runID string, entry models.RunLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.read(runID)
	if err != nil {
		return err
	}

	run.Log = append(run.Log, entry)

	return writeJSON(r.path(runID), run)
}

func (r *runRepository) Finalize(_ context.Context, runID string, status models.RunStatus, runErr string, endedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, err := r.read(runID)
	if err != nil {
		return err
	}

	if run.Status.Terminal() {
		return fmt.Errorf("run %s: %w", runID, persistence.ErrRunFinalized)
	}

	run.Status = status
	run.Error = runErr
	run.EndedAt = &endedAt

	return writeJSON(r.path(runID), run)
}

func (r *runRepository) GetByID(_ context.Context, runID string) (*models.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read(runID)
}

func (r *runRepository) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.RunRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}

	runs := make([]*models.RunRecord, 0)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		run, err := r.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}

		if run.WorkflowID == workflowID {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}

	return runs, nil
}
