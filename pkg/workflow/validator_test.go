package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
)

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:      "wf-1",
		Name:    "Morning routine",
		Enabled: true,
		Nodes: []*models.WorkflowNode{
			{ID: "start", Kind: models.NodeKindTrigger, Connections: []string{"check"}},
			{ID: "check", Kind: models.NodeKindCondition, Connections: []string{"notify"}},
			{ID: "notify", Kind: models.NodeKindAction, Config: map[string]any{"action_type": "notify", "message": "up"}},
		},
	}
}

func TestValidateAcceptsSoundWorkflow(t *testing.T) {
	require.NoError(t, Validate(validWorkflow()))
}

func TestValidateRejectsDuplicateNodeIDs(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes = append(wf.Nodes, &models.WorkflowNode{ID: "check", Kind: models.NodeKindAction})

	err := Validate(wf)
	require.Error(t, err)

	var structural *StructuralError

	require.ErrorAs(t, err, &structural)
	assert.Equal(t, "check", structural.NodeID)
	assert.Contains(t, structural.Reason, "duplicate")
}

func TestValidateRejectsUnknownKind(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes = append(wf.Nodes, &models.WorkflowNode{ID: "weird", Kind: "webhook"})

	err := Validate(wf)
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))
}

func TestValidateRejectsDanglingConnection(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes[2].Connections = []string{"ghost"}

	err := Validate(wf)
	require.Error(t, err)

	var structural *StructuralError

	require.ErrorAs(t, err, &structural)
	assert.Equal(t, "notify", structural.NodeID)
}

func TestValidateRejectsNoTrigger(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes = wf.Nodes[1:]

	require.ErrorIs(t, Validate(wf), ErrNoTriggerNodes)
}

func TestValidateRejectsBadSchedule(t *testing.T) {
	wf := validWorkflow()
	wf.Schedule = "every day at noon"

	err := Validate(wf)
	require.Error(t, err)

	var syntaxErr *scheduler.ScheduleSyntaxError

	require.ErrorAs(t, err, &syntaxErr)
}

func TestValidateDetectsSelfLoop(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes[2].Connections = []string{"notify"}

	err := Validate(wf)
	require.Error(t, err)

	var cycle *CycleError

	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, "notify", cycle.NodeID)
}

func TestValidateDetectsLongCycle(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes[2].Connections = []string{"check"}

	err := Validate(wf)
	require.Error(t, err)

	var cycle *CycleError

	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, "check", cycle.NodeID)
	assert.Equal(t, []string{"start", "check", "notify", "check"}, cycle.Path)
}

func TestValidateAllowsDiamond(t *testing.T) {
	wf := &models.Workflow{
		ID:      "wf-d",
		Name:    "Diamond graph",
		Enabled: true,
		Nodes: []*models.WorkflowNode{
			{ID: "t", Kind: models.NodeKindTrigger, Connections: []string{"a", "b"}},
			{ID: "a", Kind: models.NodeKindAction, Config: map[string]any{"action_type": "notify", "message": "a"}, Connections: []string{"join"}},
			{ID: "b", Kind: models.NodeKindAction, Config: map[string]any{"action_type": "notify", "message": "b"}, Connections: []string{"join"}},
			{ID: "join", Kind: models.NodeKindAction, Config: map[string]any{"action_type": "notify", "message": "join"}},
		},
	}

	require.NoError(t, Validate(wf))
}

func TestValidateChecksEveryTrigger(t *testing.T) {
	wf := validWorkflow()
	wf.Nodes = append(wf.Nodes,
		&models.WorkflowNode{ID: "t2", Kind: models.NodeKindTrigger, Connections: []string{"loop"}},
		&models.WorkflowNode{ID: "loop", Kind: models.NodeKindDelay, Connections: []string{"loop"}},
	)

	err := Validate(wf)
	require.Error(t, err)

	var cycle *CycleError

	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, "loop", cycle.NodeID)
}
