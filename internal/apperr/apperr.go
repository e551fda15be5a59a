// Package apperr implements the error taxonomy: every failure that can
// cross a component boundary (rule engine, transport, HTTP) is one of a
// small set of typed categories, each with a stable wire code.
package apperr

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// Category is one of the taxonomy buckets.
type Category string

const (
	CategoryAuthentication Category = "AUTHENTICATION"
	CategoryAuthorization  Category = "AUTHORIZATION"
	CategoryValidation     Category = "VALIDATION"
	CategoryNotFound       Category = "NOT_FOUND"
	CategoryConflict       Category = "CONFLICT"
	CategoryTransport      Category = "TRANSPORT"
	CategoryFatal          Category = "FATAL"
)

// HTTPStatus is the status code an HTTP boundary should translate a
// Category into, per the request/response surface.
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryAuthentication:
		return 401
	case CategoryAuthorization:
		return 403
	case CategoryValidation:
		return 400
	case CategoryNotFound:
		return 404
	case CategoryConflict:
		return 409
	default:
		return 500
	}
}

// Error is the concrete typed error every component returns instead of a
// bare error string. Code is the stable wire identifier sent in ERROR
// events and HTTP error bodies (e.g. "NOT_YOUR_TURN", "GAME_NOT_FOUND").
type Error struct {
	Category Category
	Code     string
	Message  string
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a typed error with no wrapped cause.
func New(cat Category, code, message string) *Error {
	return &Error{Category: cat, Code: code, Message: message}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(cat Category, code, message string, cause error) *Error {
	return &Error{Category: cat, Code: code, Message: message, cause: cause}
}

func Authentication(code, message string) *Error { return New(CategoryAuthentication, code, message) }
func Authorization(code, message string) *Error  { return New(CategoryAuthorization, code, message) }
func Validation(code, message string) *Error     { return New(CategoryValidation, code, message) }
func NotFound(code, message string) *Error       { return New(CategoryNotFound, code, message) }
func Conflict(code, message string) *Error       { return New(CategoryConflict, code, message) }
func Transport(code, message string) *Error      { return New(CategoryTransport, code, message) }

// Fatal marks a rule-engine invariant violation: something that should be
// impossible given a correctly-implemented rule engine. Callers are
// expected to dump the offending state with DumpFatal and terminate the
// owning actor.
func Fatal(code, message string) *Error { return New(CategoryFatal, code, message) }

// As reports whether err is (or wraps) an *Error, mirroring errors.As.
func As(err error, target **Error) bool {
	return errors.As(err, target)
}

// DumpFatal renders state via go-spew for the fatal-error log line. Only
// called on the CategoryFatal path — this is deliberately expensive
// (full recursive dump) since a fatal error already means the actor is
// being torn down.
func DumpFatal(state any) string {
	return spew.Sdump(state)
}
