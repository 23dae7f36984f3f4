package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateBook signals an insert that collided with an existing
// (source_id, source_item_id) pair. Callers count it as a skip.
var ErrDuplicateBook = errors.New("book already exists")

// ErrorCategory classifies a pipeline failure and determines whether the
// orchestrator retries it.
type ErrorCategory string

const (
	ErrorTransport      ErrorCategory = "transport"       // retried with backoff
	ErrorRateLimit      ErrorCategory = "rate_limit"      // waited and retried once
	ErrorContentInvalid ErrorCategory = "content_invalid" // never retried
	ErrorPersistence    ErrorCategory = "persistence"     // retried a bounded number of times
)

// PipelineError wraps a stage failure with its category. RetryAfter is set
// only for rate-limit errors carrying a provider-advertised wait period.
type PipelineError struct {
	Category   ErrorCategory
	RetryAfter time.Duration
	Err        error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Category, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

func TransportError(err error) *PipelineError {
	return &PipelineError{Category: ErrorTransport, Err: err}
}

func RateLimitError(err error, retryAfter time.Duration) *PipelineError {
	return &PipelineError{Category: ErrorRateLimit, RetryAfter: retryAfter, Err: err}
}

func ContentInvalidError(err error) *PipelineError {
	return &PipelineError{Category: ErrorContentInvalid, Err: err}
}

func PersistenceError(err error) *PipelineError {
	return &PipelineError{Category: ErrorPersistence, Err: err}
}

// CategoryOf extracts the category from an error chain. Unclassified errors
// default to transport, the safest category to retry.
func CategoryOf(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorTransport
}

// RetryAfterOf returns the provider-advertised wait period, if any.
func RetryAfterOf(err error) time.Duration {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}
