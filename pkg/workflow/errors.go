package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWorkflowDisabled = errors.New("workflow is disabled")
	ErrNoTriggerNodes   = errors.New("workflow has no trigger nodes")
)

// StructuralError reports a graph defect found at validation time: duplicate
// or empty node IDs, unknown kinds, dangling connection references.
type StructuralError struct {
	NodeID string
	Reason string
}

func (e *StructuralError) Error() string {
	if e.NodeID == "" {
		return "invalid workflow: " + e.Reason
	}

	return fmt.Sprintf("invalid workflow: node %q: %s", e.NodeID, e.Reason)
}

// CycleError reports a connection cycle. NodeID is the node at which the
// cycle closes; Path is the trigger-rooted walk that reached it.
type CycleError struct {
	NodeID string
	Path   []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow contains a cycle at node %q: %s", e.NodeID, strings.Join(e.Path, " -> "))
}

// IsStructuralError reports whether err is a validation failure of either
// flavor, for callers that map it to a 422.
func IsStructuralError(err error) bool {
	var structural *StructuralError
	var cycle *CycleError

	return errors.As(err, &structural) || errors.As(err, &cycle) || errors.Is(err, ErrNoTriggerNodes)
}
