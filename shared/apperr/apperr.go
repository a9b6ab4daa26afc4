// Package apperr holds the domain error kinds that handlers translate into
// HTTP status codes. Services wrap one of the sentinels with context so that
// errors.Is keeps working across layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrConflict      = errors.New("conflict")
	ErrInvalid       = errors.New("invalid")
	ErrUnprocessable = errors.New("unprocessable")
	ErrUnauthorized  = errors.New("unauthorized")
)

// NotFound reports a missing resource, e.g. NotFound("invoice") -> "invoice not found".
func NotFound(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

func Forbidden(format string, args ...any) error {
	return wrap(ErrForbidden, format, args...)
}

func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

func Invalid(format string, args ...any) error {
	return wrap(ErrInvalid, format, args...)
}

func Unprocessable(format string, args ...any) error {
	return wrap(ErrUnprocessable, format, args...)
}

func Unauthorized(format string, args ...any) error {
	return wrap(ErrUnauthorized, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// Message strips the kind suffix so the text can be shown to API clients.
func Message(err error) string {
	msg := err.Error()
	for _, kind := range []error{ErrForbidden, ErrConflict, ErrInvalid, ErrUnprocessable, ErrUnauthorized} {
		suffix := ": " + kind.Error()
		if errors.Is(err, kind) && len(msg) > len(suffix) && msg[len(msg)-len(suffix):] == suffix {
			return msg[:len(msg)-len(suffix)]
		}
	}
	return msg
}

// IsKind reports whether err wraps any of kinds.
func IsKind(err error, kinds ...error) bool {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
