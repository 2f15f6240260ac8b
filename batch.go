package drudge

import (
	"context"
	"errors"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	"go.uber.org/multierr"
)

const (
	fullQueueInitialWait = 50 * time.Microsecond
	fullQueueMaxWait     = 10 * time.Millisecond
)

// Map runs fn over inputs on a temporary pool built from opts and
// returns the results in input order.
//
// A panicking fn is reported as an *IndexError wrapping a *PanicError.
func Map[I, O any](ctx context.Context, opts Options, inputs []I, fn func(I) O) ([]O, error) {
	return TryMap(ctx, opts, inputs, func(in I) (O, error) { return fn(in), nil })
}

// TryMap runs fn over inputs on a temporary pool built from opts and
// returns the results in input order. Failed inputs leave a zero value
// in their slot; their errors are combined with multierr, each wrapped in
// an *IndexError. Retries follow opts.Retry.
//
// If ctx ends before every input is processed, TryMap returns ctx.Err()
// and no results. Attempts already running are not interrupted and finish
// in the background.
func TryMap[I, O any](ctx context.Context, opts Options, inputs []I, fn func(I) (O, error)) ([]O, error) {
	p, err := New[int](opts)
	if err != nil {
		return nil, err
	}

	out := make([]O, len(inputs))
	errs := make([]error, len(inputs))

	for i := range inputs {
		job := Job[int]{
			Payload: i,
			Fn: func(i int) error {
				v, err := fn(inputs[i])
				if err != nil {
					return err
				}
				out[i] = v
				return nil
			},
			Done: func(o Outcome[int]) {
				if !o.Ok() {
					errs[o.Payload] = o.Err
				}
			},
		}
		if err := SubmitWait(ctx, p, job); err != nil {
			// ctx is done; this only starts the shutdown
			_ = p.Shutdown(ctx, Immediate)
			return nil, err
		}
	}

	if err := p.Shutdown(ctx, Graceful); err != nil {
		return nil, err
	}

	var combined error
	for i, err := range errs {
		if err != nil {
			combined = multierr.Append(combined, &IndexError{Index: i, Err: err})
		}
	}
	return out, combined
}

// SubmitWait is Submit that backs off and tries again while a bounded
// queue is full. It gives up with ctx.Err() when ctx ends first.
func SubmitWait[T any](ctx context.Context, p *Pool[T], job Job[T]) error {
	var next func() time.Duration
	for {
		err := p.Submit(job)
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		if next == nil {
			bo := boff.New(fullQueueInitialWait, fullQueueMaxWait, time.Now().UnixNano())
			next = bo.Next
		}
		timer := time.NewTimer(next())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}
