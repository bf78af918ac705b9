// Package services is the transactional layer between the HTTP surface and
// the engine: definition CRUD with validation, manual runs, run history.
package services

import (
	"errors"
	"fmt"

	"github.com/flowgrid/flowgrid/pkg/persistence"
	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

var (
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
	ErrRunNotFound      = persistence.ErrRunNotFound

	ErrWorkflowNil = errors.New("workflow cannot be nil")
	ErrIDMismatch  = errors.New("workflow ID in path and body differ")
)

// ServiceError wraps service-level errors with the operation that failed.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// StructuralConfigError marks a node config that failed its kind schema.
// Distinct from workflow.StructuralError so callers can tell graph shape
// problems from config shape problems; both map to a 422.
type StructuralConfigError struct {
	Err error
}

func (e *StructuralConfigError) Error() string {
	return e.Err.Error()
}

func (e *StructuralConfigError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err should map to an HTTP 422: the
// definition itself is unacceptable.
func IsValidationError(err error) bool {
	var syntaxErr *scheduler.ScheduleSyntaxError

	var configErr *StructuralConfigError

	return workflow.IsStructuralError(err) ||
		errors.As(err, &syntaxErr) ||
		errors.As(err, &configErr) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrIDMismatch)
}

// IsNotFoundError reports whether err should map to an HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, persistence.ErrWorkflowNotFound) ||
		errors.Is(err, persistence.ErrRunNotFound)
}

// IsConflictError reports whether err should map to an HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, workflow.ErrWorkflowDisabled)
}
