// Package errors consolidates error definitions for the orbitd pipeline.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
// - A ValidationErrors collector used by the config loader
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Source errors
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrSourceResponse    = errors.New("unexpected source response")
	ErrTimeout           = errors.New("timeout")

	// Ingest errors
	ErrMalformedRecord   = errors.New("malformed record")
	ErrLateRecord        = errors.New("record later than allowed lateness")
	ErrCheckpointCorrupt = errors.New("checkpoint corrupt")

	// Sink errors
	ErrSinkWrite      = errors.New("sink write failed")
	ErrSinkClosed     = errors.New("sink is closed")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrStoreClosed    = errors.New("store is closed")
	ErrSpoolWrite     = errors.New("spool write failed")
	ErrSpoolDirectory = errors.New("spool directory unavailable")

	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrInvalidInterval  = errors.New("invalid interval")
	ErrInvalidWindow    = errors.New("invalid window size")
	ErrInvalidLateness  = errors.New("invalid allowed lateness")
	ErrInvalidReference = errors.New("invalid reference coordinate")
	ErrMissingField     = errors.New("missing required field")

	// Internal errors
	ErrInternal = errors.New("internal error")
	ErrNotFound = errors.New("not found")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsTransient returns true if the error is expected under normal operation
// and recovered locally (counted, never fatal).
func IsTransient(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrMalformedRecord) ||
		errors.Is(err, ErrLateRecord)
}

// IsMalformed returns true if err indicates a record that failed schema
// validation during ingest.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedRecord)
}

// IsSinkError returns true if err is a durable write failure. These must
// surface to the caller since they imply data loss.
func IsSinkError(err error) bool {
	return errors.Is(err, ErrSinkWrite) ||
		errors.Is(err, ErrSinkClosed) ||
		errors.Is(err, ErrSpoolWrite)
}

// IsValidation returns true if err is a configuration validation error.
// Validation errors are fatal at startup.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidLateness) ||
		errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, ErrMissingField)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// NewMalformed creates a malformed-record error naming the offending unit.
func NewMalformed(name, reason string) error {
	return fmt.Errorf("%s: %s: %w", name, reason, ErrMalformedRecord)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the first error for errors.Is/As support.
func (v *ValidationErrors) Unwrap() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}
