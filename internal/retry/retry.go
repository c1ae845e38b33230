// Package retry provides the bounded retry-with-backoff helper shared by the
// generation stages. Waits suspend only the calling goroutine and honor
// context cancellation, so concurrent workflow sessions are unaffected.
package retry

import (
	"context"
	"time"

	"stylist/internal/domain"
)

// Policy configures a retry loop. The delay before retrying after attempt n
// (1-based) is BaseDelay * Growth^(n-1); Growth 1 keeps a fixed delay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Growth      float64

	// OnAttempt, when set, observes every provider call outcome, the final
	// success included. Diagnostics only; it must not block.
	OnAttempt func(domain.ProviderAttempt)
}

func (p Policy) observe(attempt domain.ProviderAttempt) {
	if p.OnAttempt != nil {
		p.OnAttempt(attempt)
	}
}

// DefaultPolicy matches the stage defaults: three attempts with a linear-ish
// backoff starting at two seconds.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Growth: 1.5}
}

// Delay returns the wait after the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	growth := p.Growth
	if growth <= 0 {
		growth = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		d *= growth
	}
	return time.Duration(d)
}

// Do runs fn up to policy.MaxAttempts times, retrying only failures that
// classify as transient. Fatal failures return immediately. After exhausting
// the policy the last error is wrapped in a domain.ExhaustedError together
// with the attempt trail.
func Do[T any](ctx context.Context, policy Policy, provider string, fn func() (T, error)) (T, error) {
	var zero T
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	trail := make([]domain.ProviderAttempt, 0, maxAttempts)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			policy.observe(domain.ProviderAttempt{
				Provider:  provider,
				Timestamp: time.Now().UTC(),
				Outcome:   domain.AttemptSuccess,
			})
			return result, nil
		}
		lastErr = err

		outcome := domain.AttemptTransientError
		if !domain.IsTransient(err) {
			outcome = domain.AttemptFatalError
		}
		record := domain.ProviderAttempt{
			Provider:    provider,
			Timestamp:   time.Now().UTC(),
			Outcome:     outcome,
			ErrorDetail: err.Error(),
		}
		policy.observe(record)
		trail = append(trail, record)
		if outcome == domain.AttemptFatalError {
			return zero, err
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(policy.Delay(attempt)):
			}
		}
	}

	return zero, &domain.ExhaustedError{Attempts: maxAttempts, Trail: trail, Cause: lastErr}
}
