// Package errors provides structured, component-aware errors shared across
// every calculator, store, and task-manager package in hazengine.
package errors

import (
	"fmt"
	"strings"
)

// OperationError describes a failed operation with enough context to debug
// it without re-running the calculation: what was attempted, which
// component attempted it, which resource it touched, and the underlying
// cause.
type OperationError struct {
	Operation string
	Component string
	Resource  string
	Cause     error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString("failed to ")
	b.WriteString(e.Operation)
	if e.Component != "" {
		b.WriteString(", component: ")
		b.WriteString(e.Component)
	}
	if e.Resource != "" {
		b.WriteString(", resource: ")
		b.WriteString(e.Resource)
	}
	if e.Cause != nil {
		b.WriteString(", cause: ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// FailedTo builds an error for a one-off failure: a minimal OperationError
// ("failed to <action>") when cause is nil, otherwise
// "failed to <action>: <cause>" wrapping cause.
func FailedTo(action string, cause error) error {
	if cause == nil {
		return &OperationError{Operation: action}
	}
	return fmt.Errorf("failed to %s: %w", action, cause)
}

// FailedToWithDetails builds a fully-populated OperationError.
func FailedToWithDetails(action, component, resource string, cause error) error {
	return &OperationError{
		Operation: action,
		Component: component,
		Resource:  resource,
		Cause:     cause,
	}
}

// Wrapf wraps err with an additional formatted message, or returns nil if
// err is nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Chain concatenates a set of non-nil errors into one. Returns nil if none
// of the inputs are non-nil, and the bare error if exactly one is.
func Chain(errs ...error) error {
	var msgs []string
	var first error
	for _, e := range errs {
		if e != nil {
			if first == nil {
				first = e
			}
			msgs = append(msgs, e.Error())
		}
	}
	switch len(msgs) {
	case 0:
		return nil
	case 1:
		return first
	default:
		return fmt.Errorf("multiple errors: %s", strings.Join(msgs, "; "))
	}
}

// DatabaseError wraps a store/persistence failure.
func DatabaseError(action string, cause error) error {
	return FailedToWithDetails(action, "database", "", cause)
}

// NetworkError wraps a failure reaching an endpoint.
func NetworkError(action, endpoint string, cause error) error {
	return FailedToWithDetails(action, "network", endpoint, cause)
}

// ValidationError reports a single bad field.
func ValidationError(field, reason string) error {
	return fmt.Errorf("validation failed for field %s: %s", field, reason)
}

// ConfigurationError reports a bad configuration setting.
func ConfigurationError(setting, reason string) error {
	return fmt.Errorf("configuration error for setting %s: %s", setting, reason)
}

// TimeoutError reports an operation that exceeded its deadline.
func TimeoutError(action, after string) error {
	return fmt.Errorf("timeout while %s after %s", action, after)
}

// AuthenticationError reports a failed authentication attempt.
func AuthenticationError(reason string) error {
	return fmt.Errorf("authentication failed: %s", reason)
}

// AuthorizationError reports an authorization denial.
func AuthorizationError(action, resource string) error {
	return fmt.Errorf("authorization failed: insufficient permissions to %s %s", action, resource)
}

// ParseError reports a failure parsing a file in a given format.
func ParseError(what, format string, cause error) error {
	return FailedToWithDetails(fmt.Sprintf("parse %s as %s", what, format), "parser", "", cause)
}

var retryableSubstrings = []string{
	"timeout", "connection refused", "unavailable", "temporarily",
	"try again", "reset by peer", "broken pipe",
}

// IsRetryable reports whether err looks like a transient failure worth
// retrying. nil errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
