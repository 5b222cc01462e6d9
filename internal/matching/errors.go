package matching

import (
	"errors"
	"fmt"
)

var (
	ErrMissingDestinationCountry = errors.New("trip request is missing destination_country")
	ErrRequesterNotFound         = errors.New("requesting user profile not found")
	ErrChatIDRequired            = errors.New("chat id is required")
)

// StoreError wraps candidate-store and match-store failures. Query and
// write failures against a healthy schema are transient, so they report as
// retryable; the caller maps that onto a 503.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Retryable marks the failure as safe to retry.
func (e *StoreError) Retryable() bool { return true }

// TimeoutError signals that the run's deadline expired before a complete,
// consistent ranking could be produced. Always retryable; a partial ranking
// is never returned.
type TimeoutError struct {
	Stage string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("match run deadline exceeded during %s", e.Stage)
}

// Retryable marks the failure as safe to retry.
func (e *TimeoutError) Retryable() bool { return true }

// IsRetryable reports whether err (or anything it wraps) is retryable.
func IsRetryable(err error) bool {
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
