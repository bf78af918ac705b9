// Package schemas validates node config maps against per-kind JSON schemas.
// Runs at definition save time so runtime code can read config keys without
// re-checking shapes.
package schemas

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowgrid/flowgrid/pkg/models"
)

var kindSchemas = map[models.NodeKind]map[string]any{
	models.NodeKindTrigger: {
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
		},
	},
	models.NodeKindCondition: {
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"condition_type": map[string]any{
				"type": "string",
				"enum": []any{"comparison", "time_window", "switch", "expression"},
			},
			"field":    map[string]any{"type": "string"},
			"operator": map[string]any{"type": "string"},
			"start":    map[string]any{"type": "string"},
			"end":      map[string]any{"type": "string"},
			"days":     map[string]any{"type": "array"},
			"cases":    map[string]any{"type": "array"},
			"default":  map[string]any{"type": "string"},
			"source":   map[string]any{"type": "string"},
		},
	},
	models.NodeKindAction: {
		"type":                 "object",
		"required":             []any{"action_type"},
		"additionalProperties": true,
		"properties": map[string]any{
			"action_type": map[string]any{"type": "string", "minLength": 1},
			"message":     map[string]any{"type": "string"},
			"url":         map[string]any{"type": "string"},
			"method":      map[string]any{"type": "string"},
			"collection":  map[string]any{"type": "string"},
			"record":      map[string]any{"type": "object"},
			"device_id":   map[string]any{"type": "string"},
			"command":     map[string]any{"type": "string"},
			"params":      map[string]any{"type": "object"},
		},
	},
	models.NodeKindDelay: {
		"type":                 "object",
		"additionalProperties": true,
		"properties": map[string]any{
			"duration_ms": map[string]any{"type": "number", "minimum": 0},
		},
	},
}

// ValidateNodeConfig checks one node's config against its kind schema.
// Unknown kinds are the validator's concern, not this package's; they pass
// through untouched.
func ValidateNodeConfig(node *models.WorkflowNode) error {
	schema, ok := kindSchemas[node.Kind]
	if !ok {
		return nil
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("schema validation of node %q failed: %w", node.ID, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			details = append(details, resultErr.String())
		}

		return fmt.Errorf("node %q config invalid: %s", node.ID, strings.Join(details, "; "))
	}

	return nil
}

// ValidateWorkflowConfigs runs ValidateNodeConfig over every node.
func ValidateWorkflowConfigs(wf *models.Workflow) error {
	for _, node := range wf.Nodes {
		if err := ValidateNodeConfig(node); err != nil {
			return err
		}
	}

	return nil
}
