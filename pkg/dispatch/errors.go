package dispatch

import "fmt"

// ActionError carries the failing node and kind alongside the channel error.
// The engine records it in the run log and aborts the run.
type ActionError struct {
	NodeID string
	Kind   string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %q (%s) failed: %v", e.NodeID, e.Kind, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}
