package web

import (
	"github.com/flowgrid/flowgrid/pkg/models"
)

// WorkflowRequest is the create/update body. The node list is always the full
// graph; there is no partial node editing.
type WorkflowRequest struct {
	Name      string                 `json:"name"      validate:"required,min=3"`
	Enabled   bool                   `json:"enabled"`
	Nodes     []*models.WorkflowNode `json:"nodes"     validate:"required,min=1,dive"`
	Schedule  string                 `json:"schedule"`
	Variables map[string]any         `json:"variables"`
	Metadata  map[string]any         `json:"metadata"`
}

// ToModel builds the domain workflow; ID and timestamps are the service's
// concern.
func (r *WorkflowRequest) ToModel() *models.Workflow {
	return &models.Workflow{
		Name:      r.Name,
		Enabled:   r.Enabled,
		Nodes:     r.Nodes,
		Schedule:  r.Schedule,
		Variables: r.Variables,
		Metadata:  r.Metadata,
	}
}

// RunRequest is the manual-invocation body. Variables override the
// definition's defaults for this run only.
type RunRequest struct {
	Variables     map[string]any `json:"variables"`
	TriggerNodeID string         `json:"trigger_node_id"`
}
