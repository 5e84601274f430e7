/*
errors.go - Centralized error types for the commission engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The engine itself never returns errors for dirty data; these errors come
  from configuration validation, imports, and persistence.

ERROR CATEGORIES:
  1. Validation errors - Rule/milestone/manager configuration violations
  2. Import errors - Missing columns, unsupported file formats
  3. Store errors - Missing records

USAGE:
  Callers branch on the sentinels:

    if errors.Is(err, generic.ErrInvalidRule) {
        // 400, show the field to the admin
    }

SEE ALSO:
  - commission/validate.go: Produces ValidationError
  - importer/importer.go: Produces ErrMissingColumn
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidRule is returned when a rule configuration breaks an invariant,
	// e.g. groupWithThreshold without a minimum threshold.
	ErrInvalidRule = errors.New("invalid rule")

	// ErrInvalidMilestone is returned for malformed milestone configurations.
	ErrInvalidMilestone = errors.New("invalid milestone")

	// ErrInvalidManager is returned for malformed manager records.
	ErrInvalidManager = errors.New("invalid manager")

	// ErrInvalidAssignment is returned when an FG source/manager pair breaks
	// the manager-iff-Recruiter/Account invariant.
	ErrInvalidAssignment = errors.New("invalid source assignment")

	// ErrInvalidWindow is returned when a reporting window is malformed.
	ErrInvalidWindow = errors.New("invalid reporting window")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingColumn is returned when an import feed lacks a required column.
	ErrMissingColumn = errors.New("missing required column")

	// ErrUnsupportedFormat is returned for import files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("unsupported import format")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field. It unwraps to its sentinel
// (ErrInvalidRule, ErrInvalidMilestone, ...).
type ValidationError struct {
	Kind   error
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// Invalid builds a ValidationError.
func Invalid(kind error, field, reason string) *ValidationError {
	return &ValidationError{Kind: kind, Field: field, Reason: reason}
}

// MissingColumnError names the import column that could not be found.
type MissingColumnError struct {
	Feed       string
	Candidates []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s feed: missing required column (expected one of %v)", e.Feed, e.Candidates)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrMissingColumn
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRule) ||
		errors.Is(err, ErrInvalidMilestone) ||
		errors.Is(err, ErrInvalidManager) ||
		errors.Is(err, ErrInvalidAssignment) ||
		errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrMissingColumn) ||
		errors.Is(err, ErrUnsupportedFormat)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
