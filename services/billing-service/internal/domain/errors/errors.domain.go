// services/billing-service/internal/domain/errors/errors.domain.go
package errors

import (
	"errors"
	"fmt"
)

// Standard Sentinel Errors
// The HTTP layer maps these to status codes (e.g. ErrNoteLocked -> 412).
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNoteLocked   = errors.New("visit note is finalized and locked")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrExternalService covers the price catalog and the payment gateway.
	ErrExternalService = errors.New("external service failure")

	ErrAlreadyFinalized = fmt.Errorf("%w: visit note is already finalized", ErrConflict)
	ErrDuplicateItem    = fmt.Errorf("%w: this rule already exists on the note, update quantity instead", ErrConflict)
	ErrNoBalance        = fmt.Errorf("%w: no balance remaining", ErrInvalidInput)
)

// retryable marks an ErrExternalService failure that the caller may safely retry.
type retryable struct {
	err error
}

func (r *retryable) Error() string { return r.err.Error() }
func (r *retryable) Unwrap() error { return r.err }

// External wraps cause as an ErrExternalService. When retry is true IsRetryable reports true.
func External(what string, cause error, retry bool) error {
	err := fmt.Errorf("%w: %s: %w", ErrExternalService, what, cause)
	if retry {
		return &retryable{err: err}
	}
	return err
}

// Retryable marks any error as safe to retry (e.g. a serialization failure in the store).
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryable{err: err}
}

func IsRetryable(err error) bool {
	var r *retryable
	return errors.As(err, &r)
}
