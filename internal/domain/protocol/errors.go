package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies a request failure for the initiating session. Every kind is
// local to that session; none of them is ever broadcast or fatal.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
)

// Error is a request-scoped failure with a wire-visible code.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Validationf reports missing or malformed input.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf reports a state race lost by the caller (stale assignment,
// replayed transition with a different target, illegal toggle).
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf reports an unresolvable entity id.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a protocol error.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// KindOf extracts the protocol kind from err, or "" when err is not a
// protocol error (callers treat that as an internal failure).
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// StatusCode maps a protocol kind to an HTTP status for the REST surface.
func StatusCode(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return 400
	case KindNotFound:
		return 404
	case KindConflict:
		return 409
	default:
		return 500
	}
}
