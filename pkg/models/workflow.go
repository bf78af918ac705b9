package models

import "time"

// Workflow represents a user-defined automation graph of trigger, condition,
// action and delay nodes. The engine reads it, never mutates it: updates go
// through the definition store and take effect only for runs started after
// the update commits.
type Workflow struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"    validate:"required,min=3"`
	Enabled bool            `json:"enabled"`
	Nodes   []*WorkflowNode `json:"nodes"   validate:"required,min=1,dive"`

	// Schedule is an optional cron expression (5 fields, optional leading
	// seconds field). When set and the workflow is enabled, the scheduler
	// fires it on that cadence.
	Schedule string `json:"schedule,omitempty"`

	// Variables seed every run's context; invocation overrides win on
	// key collision.
	Variables map[string]any `json:"variables,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Stats WorkflowStats `json:"stats"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WorkflowStats carries best-effort aggregate counters updated after each run.
type WorkflowStats struct {
	RunCount      int64      `json:"run_count"`
	ErrorCount    int64      `json:"error_count"`
	AvgDurationMs float64    `json:"avg_duration_ms"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
}

// NodeByID returns the node with the given ID, or nil when absent.
func (w *Workflow) NodeByID(id string) *WorkflowNode {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNodes returns the trigger nodes in declaration order.
func (w *Workflow) TriggerNodes() []*WorkflowNode {
	var triggers []*WorkflowNode

	for _, node := range w.Nodes {
		if node.IsTrigger() {
			triggers = append(triggers, node)
		}
	}

	return triggers
}

// RecordRun folds one finished run into the aggregate counters using an
// incremental mean, so no run history scan is needed.
func (s *WorkflowStats) RecordRun(duration time.Duration, failed bool) {
	s.RunCount++
	if failed {
		s.ErrorCount++
	}

	ms := float64(duration.Milliseconds())
	s.AvgDurationMs += (ms - s.AvgDurationMs) / float64(s.RunCount)

	now := time.Now().UTC()
	s.LastRunAt = &now
}
