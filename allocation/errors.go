/*
errors.go - Centralized error types for the allocation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers (api, cmd) map these to HTTP statuses or exit codes.

ERROR CATEGORIES:
  1. Finalize errors - NotBalancedError, the only error Finalize returns
  2. Input errors - unknown sector, out-of-range weight (clamped, logged)
  3. Archive errors - report lookups

CLAMPING:
  An out-of-range weight is not a failure. SetWeight clamps it and logs an
  OutOfRangeWeightError at debug level; the error value never reaches the
  caller.

SEE ALSO:
  - engine.go: Returns these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package allocation

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotBalanced is returned by Finalize when the total is not 100.
	// Recoverable: adjust the weights and finalize again.
	ErrNotBalanced = errors.New("allocation not balanced")

	// ErrUnknownSector is returned for a sector outside the fixed three.
	ErrUnknownSector = errors.New("unknown sector")

	// ErrWeightOutOfRange marks a clamped weight. Logged, never returned.
	ErrWeightOutOfRange = errors.New("weight out of range")

	// ErrReportNotFound is returned when an archived report doesn't exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrDuplicateReport is returned when a report ID is archived twice.
	ErrDuplicateReport = errors.New("duplicate report id")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotBalancedError reports the total that blocked a finalize.
type NotBalancedError struct {
	Total  int
	Status Status
}

func (e *NotBalancedError) Error() string {
	return fmt.Sprintf("allocation not balanced: total %d%% (%s)", e.Total, e.Status)
}

func (e *NotBalancedError) Unwrap() error {
	return ErrNotBalanced
}

// OutOfRangeWeightError describes a weight that was clamped.
type OutOfRangeWeightError struct {
	Sector  Sector
	Value   int
	Clamped int
}

func (e *OutOfRangeWeightError) Error() string {
	return fmt.Sprintf("weight %d for %s out of range [%d, %d], clamped to %d",
		e.Value, e.Sector, MinWeight, MaxWeight, e.Clamped)
}

func (e *OutOfRangeWeightError) Unwrap() error {
	return ErrWeightOutOfRange
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotBalanced) ||
		errors.Is(err, ErrUnknownSector)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound)
}
