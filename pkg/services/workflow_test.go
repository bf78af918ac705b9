package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/conditions"
	"github.com/flowgrid/flowgrid/pkg/dispatch"
	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/persistence/memory"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

func newService(t *testing.T) (*Workflow, *memory.Persistence, *scheduler.Scheduler) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewPersistence()
	dispatcher := dispatch.NewDispatcher(logger, dispatch.Channels{})
	engine := workflow.NewEngine(logger, store, dispatcher, conditions.NewEvaluator(), nil)
	sched := scheduler.NewScheduler(logger, func(context.Context, string) {})

	return NewWorkflow(store, engine, sched), store, sched
}

func definition() *models.Workflow {
	return &models.Workflow{
		Name:    "Evening lights",
		Enabled: true,
		Nodes: []*models.WorkflowNode{
			{ID: "t", Kind: models.NodeKindTrigger, Connections: []string{"on"}},
			{
				ID:     "on",
				Kind:   models.NodeKindAction,
				Config: map[string]any{"action_type": "notify", "message": "lights on"},
			},
		},
	}
}

func TestCreateAssignsIDAndPersists(t *testing.T) {
	svc, store, _ := newService(t)

	created, err := svc.Create(context.Background(), definition())
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	stored, err := store.WorkflowRepository().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening lights", stored.Name)
}

func TestCreateInvalidGraphNotStored(t *testing.T) {
	svc, store, _ := newService(t)

	wf := definition()
	wf.Nodes[0].Connections = []string{"ghost"}

	_, err := svc.Create(context.Background(), wf)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	all, err := store.WorkflowRepository().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateBadNodeConfigNotStored(t *testing.T) {
	svc, store, _ := newService(t)

	wf := definition()
	wf.Nodes[1].Config = map[string]any{"message": "no action_type"}

	_, err := svc.Create(context.Background(), wf)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	all, err := store.WorkflowRepository().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUpdateIsFullReplacement(t *testing.T) {
	svc, _, _ := newService(t)

	created, err := svc.Create(context.Background(), definition())
	require.NoError(t, err)

	replacement := definition()
	replacement.Name = "Evening lights v2"

	updated, err := svc.Update(context.Background(), created.ID, replacement)
	require.NoError(t, err)
	assert.Equal(t, "Evening lights v2", updated.Name)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
}

func TestUpdateInvalidKeepsStoredVersion(t *testing.T) {
	svc, store, _ := newService(t)

	created, err := svc.Create(context.Background(), definition())
	require.NoError(t, err)

	broken := definition()
	broken.Nodes = broken.Nodes[1:]

	_, err = svc.Update(context.Background(), created.ID, broken)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	stored, err := store.WorkflowRepository().GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Evening lights", stored.Name)
	assert.Len(t, stored.Nodes, 2)
}

func TestUpdateIDMismatchRejected(t *testing.T) {
	svc, _, _ := newService(t)

	created, err := svc.Create(context.Background(), definition())
	require.NoError(t, err)

	other := definition()
	other.ID = "different-id"

	_, err = svc.Update(context.Background(), created.ID, other)
	require.ErrorIs(t, err, ErrIDMismatch)
}

func TestScheduleRegistrationFollowsSaves(t *testing.T) {
	svc, _, sched := newService(t)

	wf := definition()
	wf.Schedule = "*/5 * * * *"

	created, err := svc.Create(context.Background(), wf)
	require.NoError(t, err)
	assert.True(t, sched.Registered(created.ID))

	unscheduled := definition()

	_, err = svc.Update(context.Background(), created.ID, unscheduled)
	require.NoError(t, err)
	assert.False(t, sched.Registered(created.ID))
}

func TestDeleteUnregistersSchedule(t *testing.T) {
	svc, _, sched := newService(t)

	wf := definition()
	wf.Schedule = "0 8 * * *"

	created, err := svc.Create(context.Background(), wf)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.False(t, sched.Registered(created.ID))

	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}

func TestRunHistoryNewestFirst(t *testing.T) {
	svc, _, _ := newService(t)

	created, err := svc.Create(context.Background(), definition())
	require.NoError(t, err)

	first, err := svc.RunNow(context.Background(), created.ID, nil, "")
	require.NoError(t, err)

	second, err := svc.RunNow(context.Background(), created.ID, nil, "")
	require.NoError(t, err)

	history, err := svc.RunHistory(context.Background(), created.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestRunHistoryUnknownWorkflow(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.RunHistory(context.Background(), "missing", 10)
	require.Error(t, err)
	assert.True(t, IsNotFoundError(err))
}
