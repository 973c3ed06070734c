// Package apperr defines the typed error sentinels the HTTP layer maps to
// status codes, following the resilience package's TransientError pattern
// of wrapping a plain error with a small amount of routing metadata.
package apperr

import (
	"errors"
	"fmt"
)

// InvalidInputError marks a request that failed validation before any
// domain processing occurred. Maps to HTTP 400.
type InvalidInputError struct {
	Err error
}

func (e *InvalidInputError) Error() string { return e.Err.Error() }
func (e *InvalidInputError) Unwrap() error { return e.Err }

// InvalidInput formats its arguments into an InvalidInputError.
func InvalidInput(format string, args ...any) error {
	return &InvalidInputError{Err: fmt.Errorf(format, args...)}
}

// UnknownIncidentError marks a request that referenced an incident id the
// store has never seen. Maps to HTTP 404.
type UnknownIncidentError struct {
	IncidentID string
}

func (e *UnknownIncidentError) Error() string {
	return fmt.Sprintf("unknown incident: %s", e.IncidentID)
}

// UnknownIncident constructs an UnknownIncidentError for the given id.
func UnknownIncident(id string) error {
	return &UnknownIncidentError{IncidentID: id}
}

// InvalidClaimError marks a single claim that failed validation. It never
// fails an entire ingest batch; the coordinator drops the offending claim
// and continues with the rest.
type InvalidClaimError struct {
	Field string
	Err   error
}

func (e *InvalidClaimError) Error() string {
	return fmt.Sprintf("invalid claim (%s): %s", e.Field, e.Err)
}
func (e *InvalidClaimError) Unwrap() error { return e.Err }

// InvalidClaim wraps err as an InvalidClaimError for the named field.
func InvalidClaim(field string, err error) error {
	return &InvalidClaimError{Field: field, Err: err}
}

// IsInvalidInput reports whether err is (or wraps) an InvalidInputError.
func IsInvalidInput(err error) bool {
	var e *InvalidInputError
	return errors.As(err, &e)
}

// IsUnknownIncident reports whether err is (or wraps) an UnknownIncidentError.
func IsUnknownIncident(err error) bool {
	var e *UnknownIncidentError
	return errors.As(err, &e)
}

// IsInvalidClaim reports whether err is (or wraps) an InvalidClaimError.
func IsInvalidClaim(err error) bool {
	var e *InvalidClaimError
	return errors.As(err, &e)
}
