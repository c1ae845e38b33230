package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrProviderFailure = errors.New("provider failure")
)

// ValidationError marks inputs or provider results that cannot succeed by
// retrying with identical inputs (unreachable image, wrong content type,
// malformed request).
type ValidationError struct {
	Msg   string
	Cause error
}

func NewValidationError(msg string, cause error) *ValidationError {
	return &ValidationError{Msg: msg, Cause: cause}
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// ProviderError is an HTTP failure or empty result from a generative
// provider. Transient failures (timeouts, 5xx, rate limits) are eligible for
// retry; the rest are surfaced immediately.
type ProviderError struct {
	Provider  string
	Status    int
	Msg       string
	Transient bool
	Cause     error
}

func (e *ProviderError) Error() string {
	detail := e.Msg
	if detail == "" && e.Cause != nil {
		detail = e.Cause.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, detail)
	}
	return fmt.Sprintf("%s: %s", e.Provider, detail)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// ExhaustedError wraps the last underlying error after a retry policy has
// been used up. Attempts is the number of provider calls made.
type ExhaustedError struct {
	Attempts int
	Trail    []ProviderAttempt
	Cause    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error { return e.Cause }

// CompositeFailure carries both the primary and fallback try-on attempts'
// errors so failure diagnosis is not lost when the fallback also fails.
type CompositeFailure struct {
	Primary  error
	Fallback error
}

func (e *CompositeFailure) Error() string {
	return fmt.Sprintf("compositing failed: primary: %v; fallback: %v", e.Primary, e.Fallback)
}

func (e *CompositeFailure) Unwrap() []error {
	return []error{e.Primary, e.Fallback}
}

// StateError reports an illegal workflow transition request.
type StateError struct {
	Step    Step
	Trigger string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("trigger %q is not allowed in step %q", e.Trigger, e.Step)
}

// IsTransient reports whether an error is worth retrying: transient provider
// failures, timeouts, and network-level errors. Validation failures are never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

// IsValidation reports whether an error originated from input or result
// validation rather than a provider outage.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
