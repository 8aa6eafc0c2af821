// Package errors provides the tagged error taxonomy shared by every
// Skymarshal component. Errors carry a Kind that survives wrapping so
// callers can branch on the class of failure (re-auth on Auth, record
// vs. abort on Conflict, HTTP status mapping) without string sniffing.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for retry, re-auth, and HTTP translation.
type Kind string

const (
	Auth        Kind = "auth"         // login failed, session expired, token invalid
	RateLimited Kind = "rate_limited" // upstream 429 after backoff exhaustion
	NotFound    Kind = "not_found"    // record or actor missing
	Validation  Kind = "validation"   // bad input: URI, handle, date
	Network     Kind = "network"      // timeout, connection, transient 5xx
	Storage     Kind = "storage"      // disk, SQL, or serialization failure
	Conflict    Kind = "conflict"     // mutating another actor's record
	Internal    Kind = "internal"     // invariant violation
)

// AppError is an error with a Kind and a user-facing message. The wrapped
// cause is kept for logs but never serialized to API consumers.
type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New creates an AppError with no underlying cause.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an existing error. A nil err yields nil.
func Wrap(err error, kind Kind, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of err, walking the wrap chain. Errors that never
// passed through this package report Internal.
func KindOf(err error) Kind {
	var app *AppError
	if errors.As(err, &app) {
		return app.Kind
	}
	return Internal
}

// IsKind reports whether err (or anything it wraps) carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// UserMessage returns the outermost user-facing message, falling back to a
// generic string so raw error chains never leak to API consumers.
func UserMessage(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return app.Message
	}
	return "internal error"
}

// HTTPStatus maps an error kind to the status code the API facade returns.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation:
		return http.StatusBadRequest
	case Auth:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
