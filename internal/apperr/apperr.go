package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is the service-level error carried across layer boundaries.
// Status maps directly to an HTTP status at the delivery layer.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(code string, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Err: fmt.Errorf(format, args...)}
}

func Validation(code string, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Err: fmt.Errorf(format, args...)}
}

func Permission(code string, format string, args ...interface{}) *Error {
	return &Error{Status: http.StatusForbidden, Code: code, Err: fmt.Errorf(format, args...)}
}

func IsNotFound(err error) bool   { return hasStatus(err, http.StatusNotFound) }
func IsValidation(err error) bool { return hasStatus(err, http.StatusBadRequest) }
func IsPermission(err error) bool { return hasStatus(err, http.StatusForbidden) }

func hasStatus(err error, status int) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Status == status
	}
	return false
}
