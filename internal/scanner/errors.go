package scanner

import "fmt"

// Error represents a failure to read listings from the page.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scan error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("scan error: %s", e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
