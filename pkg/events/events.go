// Package events defines the run lifecycle notifications the engine
// publishes. Consumers are external; publishing is fire-and-forget and a
// publish failure never fails a run.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/flowgrid/flowgrid/pkg/models"
)

type EventType string

// Topic is the single stream carrying run lifecycle events.
const Topic = "flowgrid.runs"

const EventTypeMetadataKey = "event_type"
const EventKeyMetadataKey = "key"

const (
	RunStartedEvent   EventType = "run.started"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	NodeExecutedEvent EventType = "node.executed"
)

// Event is implemented by every published event type.
type Event interface {
	GetType() EventType
}

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	RunID      string    `json:"run_id"`
}

func NewBaseEvent(eventType EventType, workflowID, runID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		RunID:      runID,
	}
}

type RunStarted struct {
	BaseEvent

	TriggerNodeID string         `json:"trigger_node_id"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func (e RunStarted) GetType() EventType { return RunStartedEvent }

type RunCompleted struct {
	BaseEvent

	DurationMs int64 `json:"duration_ms"`
	LogEntries int   `json:"log_entries"`
}

func (e RunCompleted) GetType() EventType { return RunCompletedEvent }

type RunFailed struct {
	BaseEvent

	DurationMs int64  `json:"duration_ms"`
	NodeID     string `json:"node_id"`
	Error      string `json:"error"`
}

func (e RunFailed) GetType() EventType { return RunFailedEvent }

type NodeExecuted struct {
	BaseEvent

	NodeID     string          `json:"node_id"`
	Kind       models.NodeKind `json:"kind"`
	DurationMs int64           `json:"duration_ms"`
}

func (e NodeExecuted) GetType() EventType { return NodeExecutedEvent }
