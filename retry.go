package drudge

import (
	"fmt"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
)

const (
	defaultAttempts = 1
	defaultMaxRetry = 5 * time.Second
)

// RetryPolicy describes how many times and how often a job should be tried.
// Zero values are treated as "use pool defaults".
type RetryPolicy struct {
	// Attempts is the maximum number of executions of a job. One means
	// no retry.
	Attempts int

	// Initial is the first back-off before a requeue. Zero requeues
	// immediately.
	Initial time.Duration

	// Max is the cap for back-off duration.
	Max time.Duration
}

// GetDefaultRP returns a pointer to the default retry policy.
func GetDefaultRP() *RetryPolicy {
	rp := RetryPolicy{}.normalize()
	return &rp
}

func (rp RetryPolicy) normalize() RetryPolicy {
	if rp.Attempts == 0 {
		rp.Attempts = defaultAttempts
	}
	if rp.Initial > 0 && rp.Max == 0 {
		rp.Max = max(defaultMaxRetry, rp.Initial)
	}
	if !RetryEnabled {
		// negative values are kept for validate to reject
		rp.Attempts = min(rp.Attempts, 1)
		rp.Initial, rp.Max = 0, 0
	}
	return rp
}

func (rp RetryPolicy) validate() error {
	switch {
	case rp.Attempts < 0:
		return &ConfigError{Field: "Retry.Attempts", Reason: fmt.Sprintf("must not be negative, got %d", rp.Attempts)}
	case rp.Initial < 0:
		return &ConfigError{Field: "Retry.Initial", Reason: "must not be negative"}
	case rp.Max < 0:
		return &ConfigError{Field: "Retry.Max", Reason: "must not be negative"}
	case rp.Initial > 0 && rp.Max < rp.Initial:
		return &ConfigError{Field: "Retry.Max", Reason: "must not be below Retry.Initial"}
	}
	return nil
}

// merge overrides the non-zero fields of the pool default with the job's.
func (rp RetryPolicy) merge(job *RetryPolicy) RetryPolicy {
	if job == nil {
		return rp
	}
	if job.Attempts > 0 {
		rp.Attempts = job.Attempts
	}
	if job.Initial > 0 {
		rp.Initial = job.Initial
	}
	if job.Max > 0 {
		rp.Max = job.Max
	}
	rp = rp.normalize()
	if rp.Max < rp.Initial {
		rp.Max = rp.Initial
	}
	return rp
}

// backoff returns the delay generator for this policy, or nil when
// requeues are immediate.
func (rp RetryPolicy) backoff() func() time.Duration {
	if rp.Initial <= 0 || rp.Attempts <= 1 {
		return nil
	}
	bo := boff.New(rp.Initial, rp.Max, time.Now().UnixNano())
	return bo.Next
}

type decision int

const (
	decisionComplete decision = iota
	decisionRequeue
	decisionTerminal
)

func (d decision) String() string {
	switch d {
	case decisionComplete:
		return "complete"
	case decisionRequeue:
		return "requeue"
	default:
		return "terminal"
	}
}

// decide is the whole retry state machine. attempts is the number of
// requeues the job has already had; err is the result of the attempt
// that just ran.
func decide(attempts int, err error, pol RetryPolicy) decision {
	if err == nil {
		return decisionComplete
	}
	if IsPermanent(err) {
		return decisionTerminal
	}
	if attempts+1 < pol.Attempts {
		return decisionRequeue
	}
	return decisionTerminal
}
