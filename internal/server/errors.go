package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/apply-agent/internal/runloop"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation error: %s", e.Message)
	}
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *ErrValidation
	var settingsErr *runloop.ValidationError
	switch {
	case errors.As(err, &verr), errors.As(err, &settingsErr):
		return http.StatusBadRequest
	case errors.Is(err, runloop.ErrNavigationRequired):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
