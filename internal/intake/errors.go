package intake

import (
	"fmt"
	"net/http"
)

// StatusError is an intake failure with an HTTP status hint, so the handler
// can map outcomes without matching on message text.
type StatusError struct {
	Code int
	Msg  string
}

func (e *StatusError) Error() string { return e.Msg }

func validationErrf(format string, args ...any) *StatusError {
	return &StatusError{Code: http.StatusBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func notFoundErrf(format string, args ...any) *StatusError {
	return &StatusError{Code: http.StatusNotFound, Msg: fmt.Sprintf(format, args...)}
}

func conflictErrf(format string, args ...any) *StatusError {
	return &StatusError{Code: http.StatusBadRequest, Msg: fmt.Sprintf(format, args...)}
}
