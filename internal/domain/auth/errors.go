package auth

import (
	"errors"
	"fmt"
)

// FailureKind categorizes an authentication failure.
type FailureKind string

const (
	// FailureCredential indicates the backend rejected the credentials or token.
	FailureCredential FailureKind = "credential"
	// FailureNetwork indicates the backend could not be reached.
	FailureNetwork FailureKind = "network"
	// FailureValidation indicates malformed input or a malformed backend payload.
	FailureValidation FailureKind = "validation"
	// FailureServer indicates the backend answered with an unexpected error.
	FailureServer FailureKind = "server"
)

// Generic user-facing messages used when the backend offers none.
const (
	MsgLoginFailed     = "Login failed. Please try again."
	MsgNetworkFailure  = "Unable to reach the server. Please check your connection and try again."
	MsgInvalidIdentity = "The server returned an incomplete user profile."
	MsgRequestFailed   = "Request failed."
)

// Failure is the tagged error produced once at the backend boundary.
// Downstream code reads Kind and Message and never inspects raw payloads.
type Failure struct {
	Kind    FailureKind
	Message string
	// Status is the HTTP status code when the backend answered, zero otherwise.
	Status int
	Cause  error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error { return f.Cause }

// Retryable reports whether repeating the same request may succeed.
func (f *Failure) Retryable() bool {
	return f.Kind == FailureNetwork || f.Kind == FailureServer
}

// NewFailure constructs a Failure.
func NewFailure(kind FailureKind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: cause}
}

// AsFailure extracts a *Failure from err, wrapping unknown errors as network failures.
func AsFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: FailureNetwork, Message: MsgNetworkFailure, Cause: err}
}

// UserMessage returns the human-readable message for err, falling back to fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}
	return fallback
}
