package page

import "fmt"

// Error represents a failure to inspect or act on the page.
type Error struct {
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("page %s error: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("page %s error: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func foreignNode(op string, n Node) error {
	return &Error{Op: op, Message: fmt.Sprintf("node of type %T does not belong to this view", n)}
}
