package models

import "strings"

// RunContext is the per-invocation variable mapping threaded through one
// run's traversal. It is owned by exactly one in-flight run and never shared
// across concurrent runs of the same workflow.
type RunContext struct {
	RunID      string
	WorkflowID string
	Values     map[string]any
}

// NewRunContext seeds a context from the workflow's default variables merged
// with invocation-supplied overrides; overrides win on key collision.
func NewRunContext(runID, workflowID string, defaults, overrides map[string]any) *RunContext {
	values := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		values[k] = v
	}

	for k, v := range overrides {
		values[k] = v
	}

	return &RunContext{
		RunID:      runID,
		WorkflowID: workflowID,
		Values:     values,
	}
}

// Lookup resolves a dotted path ("order.customer.email") by descending
// through nested maps. The second return is false when any segment is
// missing or a non-map is traversed into.
func (c *RunContext) Lookup(path string) (any, bool) {
	if c == nil || c.Values == nil {
		return nil, false
	}

	// Direct hit first, so keys containing dots still resolve.
	if v, ok := c.Values[path]; ok {
		return v, true
	}

	var current any = c.Values

	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
