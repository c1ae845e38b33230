package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"stylist/internal/domain"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Growth: 1}
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), "tester", func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("result = %q, want ok", got)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), fastPolicy(3), "tester", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &domain.ProviderError{Provider: "tester", Msg: "upstream 500", Transient: true}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("result = %d, want 42", got)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestDoExhaustsTransientFailures(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(3), "tester", func() (int, error) {
		calls++
		return 0, &domain.ProviderError{Provider: "tester", Msg: "timeout", Transient: true}
	})
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	var exhausted *domain.ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("error = %T, want *domain.ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", exhausted.Attempts)
	}
	if len(exhausted.Trail) != 3 {
		t.Fatalf("trail = %d entries, want 3", len(exhausted.Trail))
	}
	for i, rec := range exhausted.Trail {
		if rec.Outcome != domain.AttemptTransientError {
			t.Fatalf("trail[%d].Outcome = %q, want %q", i, rec.Outcome, domain.AttemptTransientError)
		}
		if rec.Provider != "tester" {
			t.Fatalf("trail[%d].Provider = %q, want tester", i, rec.Provider)
		}
	}
}

func TestDoStopsOnFatalError(t *testing.T) {
	calls := 0
	fatal := domain.NewValidationError("prompt is empty", nil)
	_, err := Do(context.Background(), fastPolicy(5), "tester", func() (int, error) {
		calls++
		return 0, fatal
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, fatal) {
		t.Fatalf("error = %v, want the fatal error unwrapped", err)
	}
}

func TestDoObservesEveryAttempt(t *testing.T) {
	var seen []domain.AttemptOutcome
	policy := fastPolicy(3)
	policy.OnAttempt = func(a domain.ProviderAttempt) {
		seen = append(seen, a.Outcome)
	}

	calls := 0
	_, err := Do(context.Background(), policy, "tester", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, &domain.ProviderError{Provider: "tester", Msg: "upstream 500", Transient: true}
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.AttemptOutcome{
		domain.AttemptTransientError,
		domain.AttemptTransientError,
		domain.AttemptSuccess,
	}
	if len(seen) != len(want) {
		t.Fatalf("observed %d attempts, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("attempt %d outcome = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestDoHonorsContextDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxAttempts: 3, BaseDelay: time.Hour, Growth: 1}
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Do(ctx, policy, "tester", func() (int, error) {
			calls++
			return 0, &domain.ProviderError{Provider: "tester", Msg: "busy", Transient: true}
		})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("retry loop did not observe cancellation")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPolicyDelayGrowth(t *testing.T) {
	p := Policy{MaxAttempts: 4, BaseDelay: 2 * time.Second, Growth: 1.5}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 3 * time.Second},
		{3, 4500 * time.Millisecond},
		{0, 2 * time.Second},
	}
	for _, tc := range cases {
		if got := p.Delay(tc.attempt); got != tc.want {
			t.Fatalf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}
