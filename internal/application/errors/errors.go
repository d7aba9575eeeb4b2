// Package apperrors defines application-level error types.
package apperrors

import (
	"fmt"
)

// ValidationError indicates request or profile validation failed.
type ValidationError struct {
	Field   string   // Field that failed validation
	Message string   // Error message
	Details []string // Additional details
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s (%d issues)", e.Field, e.Message, len(e.Details))
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string, details ...string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Details: details,
	}
}

// RunError is a failed run reported with full detail to the caller.
// The cause chain stays intact for errors.As; its text is already scrubbed
// of secrets.
type RunError struct {
	Cause        error
	Unit         string
	Profile      string
	InvocationID string
}

func (e *RunError) Error() string {
	switch {
	case e.Unit != "":
		return fmt.Sprintf("class runner failed for unit %s: %v", e.Unit, e.Cause)
	case e.Profile != "":
		return fmt.Sprintf("class runner failed for profile %s: %v", e.Profile, e.Cause)
	default:
		return fmt.Sprintf("class runner failed: %v", e.Cause)
	}
}

func (e *RunError) Unwrap() error {
	return e.Cause
}

// NewRunError creates a new run error.
func NewRunError(invocationID, profile, unit string, cause error) *RunError {
	return &RunError{
		InvocationID: invocationID,
		Profile:      profile,
		Unit:         unit,
		Cause:        cause,
	}
}

// RenderError indicates captured output could not be rendered.
type RenderError struct {
	Cause  error
	Parser string
}

func (e *RenderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to render output with parser %q: %v", e.Parser, e.Cause)
	}
	return fmt.Sprintf("failed to render output with parser %q", e.Parser)
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// NewRenderError creates a new render error.
func NewRenderError(parser string, cause error) *RenderError {
	return &RenderError{
		Parser: parser,
		Cause:  cause,
	}
}

// ConfigurationError indicates system config or setup issue.
type ConfigurationError struct {
	Cause   error
	Aspect  string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error (%s): %s: %v", e.Aspect, e.Message, e.Cause)
	}
	return fmt.Sprintf("configuration error (%s): %s", e.Aspect, e.Message)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError creates a new configuration error.
func NewConfigurationError(aspect, message string, cause error) *ConfigurationError {
	return &ConfigurationError{
		Aspect:  aspect,
		Message: message,
		Cause:   cause,
	}
}
