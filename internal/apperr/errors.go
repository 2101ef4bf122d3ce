// Package apperr classifies failures into the small set of kinds the HTTP
// surface reports: validation, unauthenticated, upstream fetch and
// generation.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation      Kind = "VALIDATION"
	KindUnauthenticated Kind = "UNAUTHENTICATED"
	KindUpstreamFetch   Kind = "UPSTREAM_FETCH"
	KindGeneration      Kind = "GENERATION"
	KindInternal        Kind = "INTERNAL"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated}
	ErrUpstreamFetch   = &Error{Kind: KindUpstreamFetch}
	ErrGeneration      = &Error{Kind: KindGeneration}
)

// Error carries a user-facing message and an HTTP status.
type Error struct {
	Kind    Kind
	Message string
	Status  int
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports kind equality so callers can match on the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Status: http.StatusBadRequest}
}

// TooLarge is a validation failure for a request body over the size cap.
func TooLarge(message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Status: http.StatusRequestEntityTooLarge}
}

func Unauthenticated(message string) *Error {
	if message == "" {
		message = "Unauthorized"
	}
	return &Error{Kind: KindUnauthenticated, Message: message, Status: http.StatusUnauthorized}
}

// UpstreamFetch wraps a failed GitHub call. The reported status is always
// 500; upstreamStatus is kept only in the message for logs.
func UpstreamFetch(message string, upstreamStatus int, cause error) *Error {
	if upstreamStatus > 0 {
		message = fmt.Sprintf("%s (upstream status %d)", message, upstreamStatus)
	}
	return &Error{Kind: KindUpstreamFetch, Message: message, Status: http.StatusInternalServerError, Cause: cause}
}

func Generation(message string, cause error) *Error {
	return &Error{Kind: KindGeneration, Message: message, Status: http.StatusInternalServerError, Cause: cause}
}

// StatusOf maps err to an HTTP status. Unclassified errors are 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to return in an {error} body. Upstream
// details stay in the logs.
func PublicMessage(err error, fallback string) string {
	var e *Error
	if !errors.As(err, &e) {
		return fallback
	}
	switch e.Kind {
	case KindValidation, KindUnauthenticated:
		return e.Message
	default:
		return fallback
	}
}
