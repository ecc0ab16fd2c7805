// Package herrors defines the error-kind taxonomy shared by every Hermes
// component, modeled on the channel-error pattern used elsewhere in this
// codebase: a single struct carrying a classification tag instead of a
// family of exception types.
package herrors

import "fmt"

// Kind classifies why an operation failed. Callers switch on Kind rather
// than on concrete error types.
type Kind string

const (
	NotFound Kind = "not_found"
	Invalid  Kind = "invalid"
	Conflict Kind = "conflict"
	Transient Kind = "transient"
	Degraded Kind = "degraded"
	Policy   Kind = "policy"
)

// Error is a kind-tagged error. It wraps an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the caller may retry the operation. Only
// Transient failures are retryable; everything else is a final answer.
func (e *Error) IsRetryable() bool {
	return e.Kind == Transient
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func NotFoundf(format string, args ...any) *Error { return newf(NotFound, format, args...) }
func Invalidf(format string, args ...any) *Error  { return newf(Invalid, format, args...) }
func Conflictf(format string, args ...any) *Error { return newf(Conflict, format, args...) }
func Policyf(format string, args ...any) *Error   { return newf(Policy, format, args...) }

func Transientf(err error, format string, args ...any) *Error {
	return wrapf(Transient, err, format, args...)
}

func Degradedf(err error, format string, args ...any) *Error {
	return wrapf(Degraded, err, format, args...)
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if as(err, &e) {
		return e.Kind == kind
	}
	return false
}

// as is a tiny local errors.As, so this package needs no import beyond fmt
// for this one call site.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
