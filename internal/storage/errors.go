package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline. Components wrap these with
// context via fmt.Errorf("...: %w", err) so callers can errors.Is them.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingRequiredField is returned by the normalizer when a raw
	// listing lacks address, rent, bedrooms or bathrooms.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrReconcileConflict is returned when a concurrent reconciliation for
	// the same content hash could not be resolved after retrying.
	ErrReconcileConflict = errors.New("reconciliation conflict")

	// ErrScoringUnavailable means the external scoring provider failed or
	// timed out; callers fall back to heuristic-only ranking.
	ErrScoringUnavailable = errors.New("scoring unavailable")

	// ErrJobInFlight means the market already has a pending or running
	// scrape job; dispatch refuses a second one.
	ErrJobInFlight = errors.New("job already in flight")

	// ErrSourceUnavailable means the source is disabled or over a rate
	// limit. The market is skipped, not failed: the circuit breaker only
	// reacts to real scrape outcomes.
	ErrSourceUnavailable = errors.New("source unavailable")
)

// ValidationError reports a bad or missing field in a raw listing.
// The record is dropped and counted in job metrics, never stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrMissingRequiredField }

// AdapterError reports a source-side scrape failure. It feeds the circuit
// breaker and never corrupts stored data.
type AdapterError struct {
	Source string
	Err    error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Source, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
