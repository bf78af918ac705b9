package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunContextOverridesWin(t *testing.T) {
	ctx := NewRunContext("r1", "w1",
		map[string]any{"a": 1, "b": 2},
		map[string]any{"b": 3})

	v, ok := ctx.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = ctx.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestRunContextDottedLookup(t *testing.T) {
	ctx := NewRunContext("r1", "w1", map[string]any{
		"device": map[string]any{
			"sensor": map[string]any{"temp": 21.5},
		},
		"flat.key": "direct",
	}, nil)

	v, ok := ctx.Lookup("device.sensor.temp")
	require.True(t, ok)
	assert.Equal(t, 21.5, v)

	// A key containing dots wins over path descent.
	v, ok = ctx.Lookup("flat.key")
	require.True(t, ok)
	assert.Equal(t, "direct", v)

	_, ok = ctx.Lookup("device.sensor.humidity")
	assert.False(t, ok)

	_, ok = ctx.Lookup("device.sensor.temp.deeper")
	assert.False(t, ok)
}

func TestWorkflowStatsIncrementalMean(t *testing.T) {
	var stats WorkflowStats

	stats.RecordRun(100*time.Millisecond, false)
	stats.RecordRun(300*time.Millisecond, true)

	assert.Equal(t, int64(2), stats.RunCount)
	assert.Equal(t, int64(1), stats.ErrorCount)
	assert.InDelta(t, 200.0, stats.AvgDurationMs, 0.001)
	require.NotNil(t, stats.LastRunAt)
}

func TestRunStatusTerminal(t *testing.T) {
	assert.False(t, RunStatusRunning.Terminal())
	assert.True(t, RunStatusCompleted.Terminal())
	assert.True(t, RunStatusFailed.Terminal())
	assert.True(t, RunStatusCancelled.Terminal())
}

func TestNodeKindValid(t *testing.T) {
	assert.True(t, NodeKindTrigger.Valid())
	assert.True(t, NodeKindDelay.Valid())
	assert.False(t, NodeKind("webhook").Valid())
}

func TestTriggerNodesDeclarationOrder(t *testing.T) {
	wf := &Workflow{
		Nodes: []*WorkflowNode{
			{ID: "a", Kind: NodeKindAction},
			{ID: "t2", Kind: NodeKindTrigger},
			{ID: "t1", Kind: NodeKindTrigger},
		},
	}

	triggers := wf.TriggerNodes()
	require.Len(t, triggers, 2)
	assert.Equal(t, "t2", triggers[0].ID)
	assert.Equal(t, "t1", triggers[1].ID)
}
