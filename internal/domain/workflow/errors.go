package workflow

import (
	"errors"
	"fmt"
)

// State error codes
const (
	StateCodeNotDraft         = "instance_not_draft"
	StateCodeNotInProgress    = "instance_not_in_progress"
	StateCodeTerminal         = "instance_terminal"
	StateCodeNotResubmittable = "instance_not_resubmittable"
	StateCodeUnknownStep      = "unknown_step"
	StateCodeStepNotActive    = "step_not_active"
	StateCodeNotAssignee      = "not_assignee"
	StateCodeNotInitiator     = "not_initiator"
	StateCodeMissingAssignee  = "missing_assignee"
	StateCodeNoTransition     = "no_transition"
)

// StateError is returned when an action is illegal given the current instance
// state. It never implies a defect; the caller chose an action the instance
// cannot accept.
type StateError struct {
	Code    string
	Message string
}

// Error implements the error interface
func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func stateErrorf(code, format string, args ...any) *StateError {
	return &StateError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsStateError unwraps err into a *StateError if it is one
func AsStateError(err error) (*StateError, bool) {
	var se *StateError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
