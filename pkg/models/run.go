package models

import "time"

// RunStatus is the lifecycle state of a single workflow run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"

	// RunStatusCancelled is reserved for runs a caller marks unreachable
	// (e.g. store unavailable); the engine never sets it mid-flight.
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// LogLevel classifies run log entries.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// RunLogEntry is one append-only entry in a run's log. Entries within a
// branch are ordered by emission; across concurrent branches they interleave
// by wall-clock append time.
type RunLogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	NodeID    string         `json:"node_id,omitempty"`
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
}

// RunRecord is the outcome of one workflow execution. It is created with
// status running, mutated only by the engine that owns the run, and
// finalized exactly once.
type RunRecord struct {
	ID         string        `json:"id"`
	WorkflowID string        `json:"workflow_id"`
	Status     RunStatus     `json:"status"`
	StartedAt  time.Time     `json:"started_at"`
	EndedAt    *time.Time    `json:"ended_at,omitempty"`
	Log        []RunLogEntry `json:"log"`

	// Error is set only when Status is failed. Callers consuming run
	// history must inspect Status and Error together.
	Error string `json:"error,omitempty"`
}

// Duration returns the run's wall-clock duration, zero while still running.
func (r *RunRecord) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}

	return r.EndedAt.Sub(r.StartedAt)
}
