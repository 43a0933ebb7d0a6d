// Package planerrors provides the structured error taxonomy for the
// refinement engine's error handling design: method inapplicability, action
// failure, exhausted backtracking, malformed ISO-8601 metadata, STN
// inconsistency, and infrastructure failure. Errors preserve their chain via
// Unwrap so callers can use errors.Is/errors.As across package boundaries.
package planerrors

import (
	"errors"
	"fmt"
)

// Kind categorizes a planner failure the way the refinement engine's error
// handling design distinguishes them: some are expected control flow
// (MethodInapplicable never escapes the engine), others terminate a plan.
type Kind string

const (
	// MethodInapplicable signals a task/goal/multigoal method declined to
	// apply. Never propagated past the engine; surfaced only for logging.
	MethodInapplicable Kind = "method_inapplicable"

	// ActionFailure signals an action handler returned (err, reason). The
	// engine backtracks and reports the failure via the outcome reporter.
	ActionFailure Kind = "action_failure"

	// NoApplicableBranch signals backtracking exhausted every ancestor
	// without finding a retry candidate; the plan record is finalized failed.
	NoApplicableBranch Kind = "no_applicable_branch"

	// MalformedMetadata signals an unparseable ISO-8601 string, an
	// out-of-range duration, or a negative bound surfaced by the metadata
	// and time model.
	MalformedMetadata Kind = "malformed_metadata"

	// STNInconsistent signals a constraint addition left the STN's
	// consistent flag false.
	STNInconsistent Kind = "stn_inconsistent"

	// InfrastructureFailure wraps an error from an external collaborator
	// (a data-store error surfaced from inside an action handler).
	InfrastructureFailure Kind = "infrastructure_failure"
)

// Error is the structured error type returned by every package in this
// module. It records which of the six error kinds applies, a human-readable
// message, and an optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind that wraps cause. If cause is
// already an *Error of the same kind, it is returned unchanged to avoid
// redundant nesting.
func Wrap(kind Kind, message string, cause error) *Error {
	var existing *Error
	if errors.As(cause, &existing) && existing.Kind == kind && message == "" {
		return existing
	}
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, supporting errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is reports whether target has the same Kind, allowing
// errors.Is(err, planerrors.New(planerrors.ActionFailure, "")) style checks
// that compare only on Kind.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

// KindOf extracts the Kind from err, returning ("", false) if err is not (or
// does not wrap) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
