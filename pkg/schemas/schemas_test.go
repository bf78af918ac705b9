package schemas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/models"
)

func TestActionRequiresActionType(t *testing.T) {
	node := &models.WorkflowNode{
		ID:     "a",
		Kind:   models.NodeKindAction,
		Config: map[string]any{"message": "hi"},
	}

	err := ValidateNodeConfig(node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action_type")
}

func TestDelayRequiresNonNegativeDuration(t *testing.T) {
	node := &models.WorkflowNode{
		ID:     "d",
		Kind:   models.NodeKindDelay,
		Config: map[string]any{"duration_ms": float64(-5)},
	}

	require.Error(t, ValidateNodeConfig(node))

	node.Config["duration_ms"] = float64(250)
	require.NoError(t, ValidateNodeConfig(node))
}

func TestDelayWithoutDurationPasses(t *testing.T) {
	// The engine supplies the default duration; absence is not a config error.
	node := &models.WorkflowNode{ID: "d", Kind: models.NodeKindDelay}

	require.NoError(t, ValidateNodeConfig(node))

	node.Config = map[string]any{"description": "pause"}
	require.NoError(t, ValidateNodeConfig(node))
}

func TestConditionTypeEnum(t *testing.T) {
	node := &models.WorkflowNode{
		ID:     "c",
		Kind:   models.NodeKindCondition,
		Config: map[string]any{"condition_type": "magic"},
	}

	require.Error(t, ValidateNodeConfig(node))

	node.Config["condition_type"] = "time_window"
	require.NoError(t, ValidateNodeConfig(node))
}

func TestTriggerWithNilConfigPasses(t *testing.T) {
	node := &models.WorkflowNode{ID: "t", Kind: models.NodeKindTrigger}

	require.NoError(t, ValidateNodeConfig(node))
}

func TestValidateWorkflowConfigsStopsAtFirstBadNode(t *testing.T) {
	wf := &models.Workflow{
		ID:   "wf",
		Name: "Config check",
		Nodes: []*models.WorkflowNode{
			{ID: "t", Kind: models.NodeKindTrigger},
			{ID: "bad", Kind: models.NodeKindAction, Config: map[string]any{"message": "hi"}},
		},
	}

	err := ValidateWorkflowConfigs(wf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
}
