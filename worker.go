package drudge

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	lg "github.com/Andrej220/go-utils/zlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// WorkerState is the lifecycle state of one worker.
type WorkerState int32

const (
	WorkerStarting WorkerState = iota
	WorkerRunning
	WorkerDraining
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStarting:
		return "starting"
	case WorkerRunning:
		return "running"
	case WorkerDraining:
		return "draining"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type worker[T any] struct {
	pool   *Pool[T]
	index  int
	assign assignor

	state atomic.Int32
	core  atomic.Int32

	// current is the task being handled; only touched by the worker's
	// own goroutine.
	current *task[T]
}

func newWorker[T any](p *Pool[T], index int, assign assignor) *worker[T] {
	w := &worker[T]{pool: p, index: index, assign: assign}
	w.core.Store(unpinned)
	return w
}

// run owns one OS thread for the worker's whole life. If a job calls
// runtime.Goexit the goroutine cannot be saved: the job is reported as
// failed and a replacement goroutine takes over the worker slot.
func (w *worker[T]) run(started func()) {
	p := w.pool
	clean := false
	defer func() {
		if !clean {
			if t := w.current; t != nil {
				w.current = nil
				p.finish(t, t.terminal(ErrJobExited))
			}
			p.wg.Add(1)
			go w.run(nil)
		} else {
			w.state.Store(int32(WorkerStopped))
		}
		p.wg.Done()
	}()

	runtime.LockOSThread()
	if !w.pin() {
		// a pinned thread is left locked so it is discarded on exit
		defer runtime.UnlockOSThread()
	}
	w.state.Store(int32(WorkerRunning))
	if p.State() != PoolRunning {
		w.markDraining()
	}
	if started != nil {
		started()
	}

	w.loop()
	clean = true
}

// pin applies the assigned core, if any. It reports whether the thread
// ended up pinned.
func (w *worker[T]) pin() bool {
	core, ok := w.assign.assign(w.index)
	if !ok {
		w.core.Store(unpinned)
		return false
	}
	if err := PinToCPU(core); err != nil {
		w.core.Store(unpinned)
		w.pool.reportInternalError(fmt.Errorf("drudge: pin worker %d to cpu %d: %w", w.index, core, err))
		lg.FromContext(w.pool.opts.Ctx).Warn("Worker running unpinned",
			lg.String("pool", w.pool.id),
			lg.Int("worker", w.index),
			lg.Int("cpu", core),
			lg.Any("error", err),
		)
		return false
	}
	w.core.Store(int32(core))
	return true
}

// markDraining moves a running worker to WorkerDraining. A worker that
// already stopped keeps its state.
func (w *worker[T]) markDraining() {
	w.state.CompareAndSwap(int32(WorkerRunning), int32(WorkerDraining))
}

func (w *worker[T]) loop() {
	p := w.pool
	for {
		t, err := p.queue.Recv()
		if err != nil {
			return
		}
		w.current = t
		w.handle(t)
		w.current = nil
	}
}

func (w *worker[T]) handle(t *task[T]) {
	p := w.pool
	if p.stopping.Load() {
		p.finish(t, t.abandoned())
		return
	}

	ctx := t.ctx()
	if err := ctx.Err(); err != nil {
		p.finish(t, t.terminal(err))
		return
	}

	p.activeWorkers.Add(1)
	defer p.activeWorkers.Add(-1)

	err := w.runAttempt(ctx, t)

	switch decide(t.attempts, err, t.policy) {
	case decisionComplete:
		p.finish(t, t.outcome(OutcomeSuccess, nil))
	case decisionRequeue:
		w.requeue(ctx, t, err)
	default:
		p.finish(t, t.terminal(err))
	}
}

// runAttempt executes Fn once, converting a panic into a *PanicError.
func (w *worker[T]) runAttempt(ctx context.Context, t *task[T]) (err error) {
	p := w.pool
	t.runs++

	_, span := p.opts.Tracer.Start(ctx, "drudge.job",
		trace.WithAttributes(
			attribute.String("drudge.pool", p.id),
			attribute.Int64("drudge.job.id", int64(t.id)),
			attribute.Int("drudge.job.attempt", t.runs),
			attribute.Int("drudge.worker", w.index),
		),
	)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			lg.FromContext(ctx).Error("job panicked",
				lg.String("pool", p.id),
				lg.Any("job", t.id),
				lg.Any("panic", r),
			)
		}
		d := time.Since(start)
		p.stats.ObserveRun(d)
		p.metrics(func(m MetricsPolicy) { m.ObserveRun(d) })
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return t.job.Fn(t.job.Payload)
}

// requeue sends t to the back of the queue, after the policy's back-off
// if it has one. A refused requeue becomes a terminal failure.
func (w *worker[T]) requeue(ctx context.Context, t *task[T], cause error) {
	p := w.pool
	t.attempts++
	t.lastErr = cause

	var delay time.Duration
	if t.nextDelay != nil {
		delay = t.nextDelay()
	}
	lg.FromContext(ctx).Warn("job attempt failed; requeueing",
		lg.String("pool", p.id),
		lg.Any("job", t.id),
		lg.Int("attempt", t.runs),
		lg.String("sleep", delay.String()),
		lg.Any("error", cause),
	)

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-p.stopCh:
			timer.Stop()
			p.finish(t, t.terminal(shuttingDown(cause)))
			return
		case <-ctx.Done():
			timer.Stop()
			lg.FromContext(ctx).Info("Job canceled", lg.Any("reason", ctx.Err()))
			p.finish(t, t.terminal(ctx.Err()))
			return
		}
	}

	if p.stopping.Load() {
		p.finish(t, t.terminal(shuttingDown(cause)))
		return
	}
	if err := p.queue.Resend(t); err != nil {
		p.reportInternalError(fmt.Errorf("drudge: requeue job %d: %w", t.id, err))
		p.finish(t, t.terminal(shuttingDown(cause)))
		return
	}
	p.stats.IncRetried()
	p.metrics(MetricsPolicy.IncRetried)
}
