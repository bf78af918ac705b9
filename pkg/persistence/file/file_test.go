package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence"
)

func newStore(t *testing.T) *Persistence {
	t.Helper()

	p, err := NewPersistence(t.TempDir())
	require.NoError(t, err)

	return p
}

func TestFileURLPrefixStripped(t *testing.T) {
	dir := t.TempDir()

	p, err := NewPersistence("file://" + dir)
	require.NoError(t, err)
	require.NoError(t, p.HealthCheck(context.Background()))
}

func TestWorkflowSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	p, err := NewPersistence(dir)
	require.NoError(t, err)

	wf := &models.Workflow{
		ID:       "wf-1",
		Name:     "Persisted workflow",
		Enabled:  true,
		Schedule: "0 * * * *",
		Nodes:    []*models.WorkflowNode{{ID: "t", Kind: models.NodeKindTrigger}},
	}

	require.NoError(t, p.WorkflowRepository().Save(context.Background(), wf))

	reopened, err := NewPersistence(dir)
	require.NoError(t, err)

	stored, err := reopened.WorkflowRepository().GetByID(context.Background(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Persisted workflow", stored.Name)

	scheduled, err := reopened.WorkflowRepository().ListEnabledWithSchedule(context.Background())
	require.NoError(t, err)
	require.Len(t, scheduled, 1)
}

func TestDeleteRemovesDocument(t *testing.T) {
	p := newStore(t)

	wf := &models.Workflow{
		ID:    "wf-1",
		Name:  "To be removed",
		Nodes: []*models.WorkflowNode{{ID: "t", Kind: models.NodeKindTrigger}},
	}

	require.NoError(t, p.WorkflowRepository().Save(context.Background(), wf))
	require.NoError(t, p.WorkflowRepository().Delete(context.Background(), "wf-1"))

	_, err := p.WorkflowRepository().GetByID(context.Background(), "wf-1")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)

	err = p.WorkflowRepository().Delete(context.Background(), "wf-1")
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestRunLifecycleOnDisk(t *testing.T) {
	p := newStore(t)
	repo := p.RunRepository()

	run := &models.RunRecord{
		ID:         "run-1",
		WorkflowID: "wf-1",
		Status:     models.RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	require.NoError(t, repo.Create(context.Background(), run))

	require.NoError(t, repo.AppendLog(context.Background(), "run-1", models.RunLogEntry{
		Timestamp: time.Now().UTC(),
		NodeID:    "t",
		Level:     models.LogLevelInfo,
		Message:   "Trigger fired",
	}))

	endedAt := time.Now().UTC()
	require.NoError(t, repo.Finalize(context.Background(), "run-1", models.RunStatusFailed, "boom", endedAt))

	stored, err := repo.GetByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, stored.Status)
	assert.Equal(t, "boom", stored.Error)
	require.Len(t, stored.Log, 1)

	err = repo.Finalize(context.Background(), "run-1", models.RunStatusCompleted, "", endedAt)
	require.ErrorIs(t, err, persistence.ErrRunFinalized)
}
