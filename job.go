package drudge

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// JobFunc is the function executed by a worker for a given job payload.
type JobFunc[T any] func(T) error

// Job represents a single unit of work submitted to the pool.
//
// Payload is passed to Fn when executed. Retry, when set, overrides the
// non-zero fields of the pool's default policy. Done, when set, receives
// the job's final outcome exactly once; since Submit is fire-and-forget it
// is the way to observe results.
type Job[T any] struct {
	Payload T
	Fn      JobFunc[T]
	Retry   *RetryPolicy
	Meta    *JobMeta
	Done    func(Outcome[T])
}

// JobMeta carries optional job context.
//
// Ctx cancels the job between attempts and scopes its logger.
// CleanupFunc runs once after the final outcome.
type JobMeta struct {
	Ctx         context.Context
	CleanupFunc func()
}

// OutcomeKind classifies how a job ended.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure is a terminal failure after a single attempt.
	OutcomeFailure
	// OutcomePanic is a terminal failure whose last attempt panicked.
	OutcomePanic
	// OutcomeMaxAttempts is a terminal failure after retries ran out.
	OutcomeMaxAttempts
	// OutcomeUnprocessed marks a job dropped by Immediate shutdown.
	OutcomeUnprocessed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomePanic:
		return "panic"
	case OutcomeMaxAttempts:
		return "max_attempts"
	case OutcomeUnprocessed:
		return "unprocessed"
	default:
		return "unknown"
	}
}

// Outcome is the final result of a job.
type Outcome[T any] struct {
	JobID   uint64
	Payload T
	Kind    OutcomeKind

	// Attempts is the number of times Fn was executed.
	Attempts int

	// Err is nil on success.
	Err error
}

// Ok reports whether the job succeeded.
func (o Outcome[T]) Ok() bool { return o.Kind == OutcomeSuccess }

// task is a job in flight. It is owned by exactly one side at a time:
// the queue buffer or the worker running it.
type task[T any] struct {
	job Job[T]
	id  uint64

	// attempts counts requeues; runs counts executions of Fn.
	attempts int
	runs     int
	lastErr  error

	policy    RetryPolicy
	nextDelay func() time.Duration
}

func (t *task[T]) ctx() context.Context {
	if t.job.Meta != nil && t.job.Meta.Ctx != nil {
		return t.job.Meta.Ctx
	}
	return context.Background()
}

func (t *task[T]) outcome(kind OutcomeKind, err error) Outcome[T] {
	return Outcome[T]{
		JobID:    t.id,
		Payload:  t.job.Payload,
		Kind:     kind,
		Attempts: t.runs,
		Err:      err,
	}
}

// terminal builds the outcome of a job that will not run again.
func (t *task[T]) terminal(err error) Outcome[T] {
	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		return t.outcome(OutcomePanic, err)
	case t.runs > 1:
		return t.outcome(OutcomeMaxAttempts, err)
	default:
		return t.outcome(OutcomeFailure, err)
	}
}

// abandoned builds the outcome of a queued job that Immediate shutdown
// discards. A job that never ran is unprocessed; a requeued one already
// failed at least once and ends as a terminal failure.
func (t *task[T]) abandoned() Outcome[T] {
	if t.runs == 0 {
		return t.outcome(OutcomeUnprocessed, ErrPoolShuttingDown)
	}
	return t.terminal(shuttingDown(t.lastErr))
}

// shuttingDown wraps the last cause of a job whose requeue was refused.
func shuttingDown(cause error) error {
	if cause == nil {
		return ErrPoolShuttingDown
	}
	return fmt.Errorf("%w: %w", ErrPoolShuttingDown, cause)
}
