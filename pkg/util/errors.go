// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for hardware synchronization failures
var (
	ErrDuplicateResource = errors.New("resource already exists")
	ErrMissingResource   = errors.New("resource not found")
	ErrUnsupportedConfig = errors.New("unsupported configuration")
	ErrBackendRejected   = errors.New("backend rejected hardware call")
	ErrInvariant         = errors.New("internal invariant violated")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrNotConnected      = errors.New("backend not connected")
)

// DuplicateError reports an add for a port that already owns a handle.
type DuplicateError struct {
	Operation string
	Port      string
	Resource  string
}

func (e *DuplicateError) Error() string {
	msg := fmt.Sprintf("%s: port %s already exists", e.Operation, e.Port)
	if e.Resource != "" {
		msg += " (resource " + e.Resource + ")"
	}
	return msg
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicateResource
}

// NewDuplicateError creates a new duplicate-resource error
func NewDuplicateError(operation, port, resource string) *DuplicateError {
	return &DuplicateError{Operation: operation, Port: port, Resource: resource}
}

// MissingError reports a change/remove for a port with no handle.
type MissingError struct {
	Operation string
	Port      string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: port %s does not exist", e.Operation, e.Port)
}

func (e *MissingError) Unwrap() error {
	return ErrMissingResource
}

// NewMissingError creates a new missing-resource error
func NewMissingError(operation, port string) *MissingError {
	return &MissingError{Operation: operation, Port: port}
}

// UnsupportedConfigError reports a configuration with no hardware mapping,
// e.g. a speed/transmitter-technology pair absent from the mode table.
type UnsupportedConfigError struct {
	Port    string
	Details string
}

func (e *UnsupportedConfigError) Error() string {
	msg := "unsupported configuration"
	if e.Port != "" {
		msg += " on port " + e.Port
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (e *UnsupportedConfigError) Unwrap() error {
	return ErrUnsupportedConfig
}

// NewUnsupportedConfigError creates a new unsupported-configuration error
func NewUnsupportedConfigError(port, details string) *UnsupportedConfigError {
	return &UnsupportedConfigError{Port: port, Details: details}
}

// BackendError wraps a failure code returned by the hardware SDK.
type BackendError struct {
	Operation string
	Port      string
	Code      int
	Err       error
}

func (e *BackendError) Error() string {
	msg := fmt.Sprintf("%s failed on port %s", e.Operation, e.Port)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BackendError) Unwrap() error {
	return ErrBackendRejected
}

// NewBackendError creates a new backend-rejected error
func NewBackendError(operation, port string, code int, err error) *BackendError {
	return &BackendError{Operation: operation, Port: port, Code: code, Err: err}
}

// Invariantf reports a violated internal invariant and terminates the
// process. A violated invariant means software state no longer describes
// hardware state; continuing would program hardware from garbage.
func Invariantf(format string, args ...interface{}) {
	Logger.Fatalf("invariant violated: "+format, args...)
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
