package evaluation

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for operations on a missing record or rating.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrProviderFailure marks an unreachable, failing or timed out provider.
	ErrProviderFailure = errors.New("provider failure")
	// ErrConsistency marks a ledger/aggregate mismatch detected inside a
	// transaction. The transaction is rolled back.
	ErrConsistency = errors.New("consistency failure")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ProviderError wraps a failure from a named summary or metric provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProviderFailure, e.Err} }
