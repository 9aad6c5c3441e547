package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCapacityExceeded signals the admission queue is full; retry later.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrQueueTimeout signals a request waited too long for an admission slot.
	ErrQueueTimeout = errors.New("queue timeout")
	// ErrCapabilityUnavailable signals one extraction capability is down or unconfigured.
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	// ErrNoSignal signals evidence aggregation produced zero candidates.
	ErrNoSignal = errors.New("no signal")
	// ErrNotFound signals no record or result could be produced.
	ErrNotFound = errors.New("not found")
	// ErrStoreConflict signals a concurrent insert race in the media store.
	ErrStoreConflict = errors.New("store conflict")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the caller may reasonably retry the operation.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrCapacityExceeded),
		errors.Is(err, ErrQueueTimeout),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrTransient):
		return true
	default:
		return false
	}
}

type retryAfterError struct {
	err   error
	after time.Duration
}

func (e *retryAfterError) Error() string { return e.err.Error() }

func (e *retryAfterError) Unwrap() error { return e.err }

// WithRetryAfter attaches a suggested retry delay to an error.
func WithRetryAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	return &retryAfterError{err: err, after: after}
}

// RetryAfter extracts a suggested retry delay, when one was attached.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.after, true
	}
	return 0, false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
