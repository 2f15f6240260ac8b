//go:build drudge_noretry

package drudge_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/azargarov/drudge"
)

func TestNoRetryBuildRunsOnce(t *testing.T) {
	if drudge.RetryEnabled {
		t.Fatal("RetryEnabled should be false")
	}

	p, err := drudge.New[int](drudge.Options{
		Workers: 2,
		Retry:   drudge.RetryPolicy{Attempts: 5},
	})
	if err != nil {
		t.Fatal(err)
	}

	var runs atomic.Int32
	outcome := make(chan drudge.Outcome[int], 1)
	_ = p.Submit(drudge.Job[int]{
		Retry: &drudge.RetryPolicy{Attempts: 10},
		Fn: func(int) error {
			runs.Add(1)
			return errors.New("always")
		},
		Done: func(o drudge.Outcome[int]) { outcome <- o },
	})
	p.Stop()

	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d; want 1", got)
	}
	if o := <-outcome; o.Kind != drudge.OutcomeFailure {
		t.Fatalf("kind = %v; want failure", o.Kind)
	}
}
