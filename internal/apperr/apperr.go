// Package apperr defines the typed errors shared by the service and
// transport layers. Handlers never inspect these directly; translation to
// HTTP status codes happens in one place (httputil.RespondWithAppError).
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind int

const (
	// KindValidation is a field-constraint violation on input.
	KindValidation Kind = iota
	// KindNotFound means the referenced record does not exist.
	KindNotFound
	// KindConflict means a uniqueness rule was violated.
	KindConflict
	// KindBadArgument is a malformed query or path parameter.
	KindBadArgument
)

// Error is an application error with a classification and, for validation
// failures, a per-field message map.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	return e.Message
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func BadArgument(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadArgument, Message: fmt.Sprintf(format, args...)}
}

// Validation builds a validation failure carrying field-level details.
func Validation(fields map[string]string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "request validation failed",
		Fields:  fields,
	}
}

// IsKind reports whether err is (or wraps) an application error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// As extracts an application error from err, nil if none is present.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
