// Package models defines the core domain models for node-based workflow automation.
package models

// NodeKind is the closed set of node kinds a workflow graph may contain.
// Unknown kinds are rejected at validation time, not discovered at run time.
type NodeKind string

const (
	NodeKindTrigger   NodeKind = "trigger"
	NodeKindCondition NodeKind = "condition"
	NodeKindAction    NodeKind = "action"
	NodeKindDelay     NodeKind = "delay"
)

// Valid reports whether the kind is one of the four supported node kinds.
func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindTrigger, NodeKindCondition, NodeKindAction, NodeKindDelay:
		return true
	}

	return false
}

// WorkflowNode represents one vertex of a workflow graph.
type WorkflowNode struct {
	ID   string   `json:"id"   validate:"required"`
	Kind NodeKind `json:"kind" validate:"required"`
	Name string   `json:"name"`

	// Config holds kind-specific parameters (operator and operand for
	// conditions, action_type for actions, duration_ms for delays).
	Config map[string]any `json:"config,omitempty"`

	// Connections lists downstream node IDs in declaration order. Every ID
	// must exist in the owning workflow's node set.
	Connections []string `json:"connections,omitempty"`
}

// IsTrigger reports whether the node is an entry point of the graph.
func (n *WorkflowNode) IsTrigger() bool {
	return n.Kind == NodeKindTrigger
}

// ConfigString returns a string config value, or the fallback when the key is
// absent or not a string.
func (n *WorkflowNode) ConfigString(key, fallback string) string {
	if v, ok := n.Config[key].(string); ok {
		return v
	}

	return fallback
}
