package template

import (
	"testing"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/stretchr/testify/assert"
)

func testContext() *models.RunContext {
	return models.NewRunContext("run-1", "wf-1", map[string]any{
		"name": "sensor-7",
		"device": map[string]any{
			"room":  "kitchen",
			"state": map[string]any{"temp": 21.5, "on": true},
		},
		"tags": []any{"a", "b"},
	}, nil)
}

func TestInterpolate_ResolvesDottedPaths(t *testing.T) {
	runCtx := testContext()

	out := Interpolate("{{device.room}} is at {{device.state.temp}}", runCtx)
	assert.Equal(t, "kitchen is at 21.5", out)
}

func TestInterpolate_UnresolvedTokenKeptLiteral(t *testing.T) {
	runCtx := testContext()

	out := Interpolate("hello {{missing.path}} from {{name}}", runCtx)
	assert.Equal(t, "hello {{missing.path}} from sensor-7", out)

	// Re-interpolating an already-unresolved template is a no-op.
	assert.Equal(t, out, Interpolate(out, runCtx))
}

func TestInterpolate_NoTokens(t *testing.T) {
	assert.Equal(t, "plain text", Interpolate("plain text", testContext()))
}

func TestInterpolate_UnterminatedToken(t *testing.T) {
	out := Interpolate("broken {{name", testContext())
	assert.Equal(t, "broken {{name", out)
}

func TestInterpolate_EmptyToken(t *testing.T) {
	out := Interpolate("x{{}}y", testContext())
	assert.Equal(t, "x{{}}y", out)
}

func TestInterpolate_NonStringValues(t *testing.T) {
	runCtx := testContext()

	assert.Equal(t, "true", Interpolate("{{device.state.on}}", runCtx))
	assert.Equal(t, `["a","b"]`, Interpolate("{{tags}}", runCtx))
}

func TestInterpolate_OverridesWinOverDefaults(t *testing.T) {
	runCtx := models.NewRunContext("run-1", "wf-1",
		map[string]any{"name": "default"},
		map[string]any{"name": "override"},
	)

	assert.Equal(t, "override", Interpolate("{{name}}", runCtx))
}

func TestInterpolateStructure(t *testing.T) {
	runCtx := testContext()

	input := map[string]any{
		"url":   "https://example.com/{{device.room}}",
		"count": 3,
		"nested": map[string]any{
			"message": "from {{name}}",
			"keep":    "{{unknown}}",
		},
		"list": []any{"{{name}}", 42},
	}

	out, ok := InterpolateStructure(input, runCtx).(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/kitchen", out["url"])
	assert.Equal(t, 3, out["count"])

	nested := out["nested"].(map[string]any)
	assert.Equal(t, "from sensor-7", nested["message"])
	assert.Equal(t, "{{unknown}}", nested["keep"])

	list := out["list"].([]any)
	assert.Equal(t, "sensor-7", list[0])
	assert.Equal(t, 42, list[1])

	// Original structure untouched.
	assert.Equal(t, "https://example.com/{{device.room}}", input["url"])
}
