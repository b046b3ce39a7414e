// Package dErrors provides coded domain errors. Services translate
// infrastructure sentinels (pkg/platform/sentinel) into these before results
// cross a module boundary, so handlers branch on stable codes instead of
// backend details.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for callers.
type Code string

const (
	// CodeValidation marks one or more business-rule violations. Recoverable:
	// the caller may correct the input and retry the same step.
	CodeValidation Code = "validation_failed"

	// CodeBadRequest marks malformed or missing input at the API boundary.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound marks a missing session or linked entity.
	CodeNotFound Code = "not_found"

	// CodeForbidden marks a caller lacking the required role.
	CodeForbidden Code = "forbidden"

	// CodeConflict marks uniqueness or one-record-per-account violations,
	// and lost check-and-set races on session updates.
	CodeConflict Code = "conflict"

	// CodeExpired marks an operation against a session past its TTL.
	CodeExpired Code = "expired"

	// CodeUnavailable marks a failed persistence/settings/account
	// collaborator call. Retryable; must never be conflated with
	// CodeValidation.
	CodeUnavailable Code = "backend_unavailable"

	// CodeInvariantViolation marks a defect: malformed data reached a rule
	// computation or a state-machine invariant broke. Logged with full
	// context.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInternal marks everything else we do not want to expose.
	CodeInternal Code = "internal"
)

// Error is a coded domain error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a coded error with no cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err returns
// nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Is is a convenience alias of HasCode for call sites that read better as a
// question.
func Is(err error, code Code) bool { return HasCode(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
