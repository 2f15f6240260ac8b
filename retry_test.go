package drudge

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	errBoom := errors.New("boom")
	pol := RetryPolicy{Attempts: 3}

	tests := []struct {
		name     string
		attempts int
		err      error
		pol      RetryPolicy
		want     decision
	}{
		{"SuccessFirstRun", 0, nil, pol, decisionComplete},
		{"SuccessAfterRetries", 2, nil, pol, decisionComplete},
		{"FirstFailure", 0, errBoom, pol, decisionRequeue},
		{"SecondFailure", 1, errBoom, pol, decisionRequeue},
		{"BudgetSpent", 2, errBoom, pol, decisionTerminal},
		{"SingleAttempt", 0, errBoom, RetryPolicy{Attempts: 1}, decisionTerminal},
		{"Permanent", 0, Permanent(errBoom), pol, decisionTerminal},
		{"WrappedPermanent", 0, fmt.Errorf("ctx: %w", Permanent(errBoom)), pol, decisionTerminal},
		{"Panic", 0, &PanicError{Value: "x"}, pol, decisionRequeue},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !RetryEnabled && tc.want == decisionRequeue {
				t.Skip("retries compiled out")
			}
			pol := tc.pol.normalize()
			if got := decide(tc.attempts, tc.err, pol); got != tc.want {
				t.Fatalf("decide(%d, %v) = %v; want %v", tc.attempts, tc.err, got, tc.want)
			}
		})
	}
}

func TestRetryPolicyMerge(t *testing.T) {
	base := RetryPolicy{Attempts: 4, Initial: time.Millisecond, Max: 10 * time.Millisecond}.normalize()

	if got := base.merge(nil); got != base {
		t.Fatalf("merge(nil) = %+v; want %+v", got, base)
	}

	if !RetryEnabled {
		return
	}

	got := base.merge(&RetryPolicy{Initial: 20 * time.Millisecond})
	if got.Initial != 20*time.Millisecond || got.Max < got.Initial {
		t.Fatalf("merge raised Initial above Max: %+v", got)
	}

	got = base.merge(&RetryPolicy{Attempts: 2})
	if got.Attempts != 2 || got.Initial != base.Initial {
		t.Fatalf("merge = %+v; want only Attempts overridden", got)
	}
}

func TestRetryPolicyValidate(t *testing.T) {
	tests := []struct {
		name string
		rp   RetryPolicy
		ok   bool
	}{
		{"Zero", RetryPolicy{}, true},
		{"Attempts", RetryPolicy{Attempts: 3}, true},
		{"NegativeAttempts", RetryPolicy{Attempts: -1}, false},
		{"NegativeInitial", RetryPolicy{Initial: -time.Second}, false},
		{"MaxBelowInitial", RetryPolicy{Initial: time.Second, Max: time.Millisecond}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rp.validate()
			if (err == nil) != tc.ok {
				t.Fatalf("validate() = %v; want ok=%v", err, tc.ok)
			}
		})
	}
}

func TestBackoffDisabledWithoutInitial(t *testing.T) {
	if next := (RetryPolicy{Attempts: 3}).backoff(); next != nil {
		t.Fatal("expected immediate requeue without Initial")
	}
	if next := (RetryPolicy{Attempts: 1, Initial: time.Second, Max: time.Second}).backoff(); next != nil {
		t.Fatal("expected no back-off for a single attempt")
	}
}

func TestGetDefaultRP(t *testing.T) {
	rp := GetDefaultRP()
	if rp.Attempts != 1 {
		t.Fatalf("Attempts = %d; want 1", rp.Attempts)
	}
}
