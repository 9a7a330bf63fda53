// Package errors provides error types and handling for drydock.
// It classifies failures into the kinds the deployment flow branches on.
package errors

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of a DeployError.
type Kind string

// Failure classes.
const (
	// KindNotFound marks an absent remote resource. Recoverable at the
	// call site; the caller decides create-vs-fail.
	KindNotFound Kind = "NOT_FOUND"
	// KindConfiguration marks missing or invalid local configuration.
	// Reported before any remote mutation is attempted.
	KindConfiguration Kind = "CONFIGURATION"
	// KindRemote marks transport, permission, or throttling failures
	// from the cloud platform. Fatal.
	KindRemote Kind = "REMOTE_OPERATION"
	// KindProcessing marks an application version or environment that
	// reached a terminal failure status. Fatal.
	KindProcessing Kind = "PROCESSING_FAILURE"
)

// DeployError represents a deployment failure with an associated kind and
// the operation that produced it.
type DeployError struct {
	// Kind is the failure class for programmatic handling
	Kind Kind
	// Op names the operation that failed, e.g. "elbv2.DescribeListeners"
	Op string
	// Message is a user-friendly error message
	Message string
	// Cause is the underlying error (for error wrapping)
	Cause error
}

// Error implements the error interface.
func (e *DeployError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error for error unwrapping.
func (e *DeployError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is to match on kind.
func (e *DeployError) Is(target error) bool {
	if t, ok := target.(*DeployError); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NotFound creates a not-found error for the named resource.
func NotFound(op, message string) *DeployError {
	return &DeployError{Kind: KindNotFound, Op: op, Message: message}
}

// Configuration creates a configuration error. These abort the run before
// any remote call.
func Configuration(message string, cause error) *DeployError {
	return &DeployError{Kind: KindConfiguration, Message: message, Cause: cause}
}

// Remote wraps a cloud platform failure with operation context.
func Remote(op string, cause error) *DeployError {
	return &DeployError{Kind: KindRemote, Op: op, Message: "remote operation failed", Cause: cause}
}

// Processing creates a terminal-status failure.
func Processing(message string) *DeployError {
	return &DeployError{Kind: KindProcessing, Message: message}
}

// IsNotFound reports whether err is a not-found deployment error.
func IsNotFound(err error) bool {
	var de *DeployError
	return errors.As(err, &de) && de.Kind == KindNotFound
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	var de *DeployError
	return errors.As(err, &de) && de.Kind == KindConfiguration
}

// GetKind extracts the failure kind from an error. Returns KindRemote for
// errors that are not DeployErrors.
func GetKind(err error) Kind {
	var de *DeployError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindRemote
}
