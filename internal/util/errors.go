// Package util provides utility functions and types for the edge server.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNoMatchingHost.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., ConfigError, NoMatchingHostError). Each
//     type implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
)

// Common sentinel errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNoMatchingHost = errors.New("no matching virtual host")
	ErrConfigInvalid  = errors.New("invalid configuration")
)

// ConfigError represents a configuration-related error. It is only
// produced at load or reload time, never on the request path.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// NoMatchingHostError reports that a request's host and port did not
// select any configured virtual host and no default host exists.
type NoMatchingHostError struct {
	Host string
	Port int
}

// Error implements the error interface.
func (e *NoMatchingHostError) Error() string {
	return fmt.Sprintf("no virtual host matches %s:%d", e.Host, e.Port)
}

// Is checks if the error matches the target.
func (e *NoMatchingHostError) Is(target error) bool {
	if target == ErrNoMatchingHost || target == ErrNotFound {
		return true
	}
	_, ok := target.(*NoMatchingHostError)
	return ok
}

// NewNoMatchingHostError creates a new NoMatchingHostError.
func NewNoMatchingHostError(host string, port int) *NoMatchingHostError {
	return &NoMatchingHostError{Host: host, Port: port}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
