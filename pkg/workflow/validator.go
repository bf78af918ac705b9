package workflow

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/flowgrid/flowgrid/pkg/models"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
)

var structValidator = validator.New()

// Validate checks a workflow definition for structural soundness. It runs on
// every save and again before every run, so a definition that validated at
// save time cannot start a run after a bad concurrent update.
//
// Checks, in order: struct tags, node IDs unique and non-empty, kinds known,
// connections resolving to existing nodes, at least one trigger, schedule
// syntax, and no connection cycles reachable from any trigger.
func Validate(wf *models.Workflow) error {
	if err := structValidator.Struct(wf); err != nil {
		return &StructuralError{Reason: err.Error()}
	}

	seen := make(map[string]*models.WorkflowNode, len(wf.Nodes))

	for _, node := range wf.Nodes {
		if node.ID == "" {
			return &StructuralError{Reason: "node with empty ID"}
		}

		if _, dup := seen[node.ID]; dup {
			return &StructuralError{NodeID: node.ID, Reason: "duplicate node ID"}
		}

		seen[node.ID] = node

		if !node.Kind.Valid() {
			return &StructuralError{NodeID: node.ID, Reason: fmt.Sprintf("unknown node kind %q", node.Kind)}
		}
	}

	for _, node := range wf.Nodes {
		for _, target := range node.Connections {
			if _, ok := seen[target]; !ok {
				return &StructuralError{
					NodeID: node.ID,
					Reason: fmt.Sprintf("connection references unknown node %q", target),
				}
			}
		}
	}

	triggers := wf.TriggerNodes()
	if len(triggers) == 0 {
		return ErrNoTriggerNodes
	}

	if wf.Schedule != "" {
		if _, err := scheduler.ParseSpec(wf.Schedule); err != nil {
			return err
		}
	}

	for _, trigger := range triggers {
		if err := detectCycle(trigger, seen); err != nil {
			return err
		}
	}

	return nil
}

// detectCycle walks the graph depth-first from one trigger, tracking the
// current path. A connection back onto the path is a cycle; rejoining an
// already finished branch (a diamond) is not.
func detectCycle(trigger *models.WorkflowNode, nodes map[string]*models.WorkflowNode) error {
	onPath := make(map[string]bool, len(nodes))
	path := make([]string, 0, len(nodes))

	var walk func(node *models.WorkflowNode) error

	walk = func(node *models.WorkflowNode) error {
		onPath[node.ID] = true
		path = append(path, node.ID)

		for _, target := range node.Connections {
			if onPath[target] {
				return &CycleError{NodeID: target, Path: append(append([]string{}, path...), target)}
			}

			if err := walk(nodes[target]); err != nil {
				return err
			}
		}

		onPath[node.ID] = false
		path = path[:len(path)-1]

		return nil
	}

	return walk(trigger)
}
