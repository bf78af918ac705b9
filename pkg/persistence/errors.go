package persistence

import "errors"

var (
	// ErrWorkflowNotFound is returned when a workflow does not exist.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrRunNotFound is returned when a run record does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunFinalized is returned when a finalized run is finalized or
	// appended to again.
	ErrRunFinalized = errors.New("run already finalized")
)

// IsWorkflowNotFound reports whether err wraps ErrWorkflowNotFound.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsRunNotFound reports whether err wraps ErrRunNotFound.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}
