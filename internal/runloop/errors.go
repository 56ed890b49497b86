package runloop

import (
	"errors"
	"fmt"
)

// ErrNavigationRequired is returned when the page is not the target search and automatic
// navigation is disabled. The caller should load the search URL and start again.
var ErrNavigationRequired = errors.New("navigation to the job search is required")

// SessionError is a session-fatal failure: the run loop halts and the operator is told.
type SessionError struct {
	Message string
	Cause   error
}

func (e *SessionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("session error: %s", e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Cause
}

// ValidationError reports settings rejected at the Start boundary.
type ValidationError struct {
	Cause error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid settings: %v", e.Cause)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}
