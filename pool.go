package drudge

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"

	"github.com/azargarov/drudge/internal/backend"
)

// PoolState is the lifecycle state of a Pool.
type PoolState int32

const (
	PoolRunning PoolState = iota
	PoolDraining
	PoolStopped
)

func (s PoolState) String() string {
	switch s {
	case PoolRunning:
		return "running"
	case PoolDraining:
		return "draining"
	case PoolStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Pool runs jobs on a fixed set of workers, each owning one OS thread.
//
// A Pool is safe for concurrent use by any number of submitters. It is
// not restartable once stopped.
type Pool[T any] struct {
	opts  Options
	id    string
	queue jobQueue[T]

	workers []*worker[T]
	wg      sync.WaitGroup // worker goroutines

	// outstanding counts accepted jobs without a final outcome.
	outstanding sync.WaitGroup

	// mu guards the accepting -> draining transition. Submit holds the
	// read side, so submitters never serialize each other.
	mu    sync.RWMutex
	state atomic.Int32

	stopping atomic.Bool   // Immediate shutdown requested
	stopCh   chan struct{} // closed on Immediate shutdown
	stopOnce sync.Once
	done     chan struct{} // closed once every worker is joined

	nextID        atomic.Uint64
	activeWorkers atomic.Int32
	stats         AtomicMetrics
	noopMetrics   bool
}

// New validates opts, opens the linked queue backend and starts
// opts.Workers workers. It returns once every worker is running.
func New[T any](opts Options) (*Pool[T], error) {
	opts.CoreTable = slices.Clone(opts.CoreTable)
	opts.FillDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p := &Pool[T]{
		opts:   opts,
		id:     uuid.NewString(),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	_, p.noopMetrics = p.opts.Metrics.(*NoopMetrics)
	p.queue = openQueue[T](&p.opts)

	cores := availableCores()
	assign := newAssignor(&p.opts, cores)

	var started sync.WaitGroup
	p.workers = make([]*worker[T], opts.Workers)
	for i := range p.workers {
		w := newWorker(p, i, assign)
		p.workers[i] = w
		started.Add(1)
		p.wg.Add(1)
		go w.run(started.Done)
	}
	started.Wait()

	lg.FromContext(p.opts.Ctx).Info("Pool started",
		lg.String("pool", p.id),
		lg.String("backend", BackendName),
		lg.Int("workers", opts.Workers),
		lg.Int("capacity", opts.Capacity),
		lg.Int("max_attempts", p.opts.Retry.Attempts),
		lg.Any("cores", cores),
	)
	return p, nil
}

// ID returns the pool's unique id, used to correlate its log lines.
func (p *Pool[T]) ID() string { return p.id }

// Submit enqueues job and returns immediately.
//
// It fails with ErrPoolClosed once Shutdown has started, whatever the
// job looks like. A running pool rejects a nil Fn with ErrNilFunc, a
// job whose context is already done with that context's error, and a
// job that does not fit a bounded queue with ErrQueueFull.
func (p *Pool[T]) Submit(job Job[T]) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.State() != PoolRunning {
		return ErrPoolClosed
	}

	if job.Fn == nil {
		return ErrNilFunc
	}
	if job.Meta != nil && job.Meta.Ctx != nil {
		if err := job.Meta.Ctx.Err(); err != nil {
			return err
		}
	}

	t := &task[T]{
		job:    job,
		id:     p.nextID.Add(1),
		policy: p.opts.Retry.merge(job.Retry),
	}
	t.nextDelay = t.policy.backoff()

	p.outstanding.Add(1)
	p.stats.IncSubmitted()
	if err := p.queue.Send(t); err != nil {
		p.stats.unsubmit()
		p.outstanding.Done()
		if errors.Is(err, backend.ErrFull) {
			return ErrQueueFull
		}
		return ErrPoolClosed
	}
	p.metrics(MetricsPolicy.IncSubmitted)
	return nil
}

// TrySubmit is Submit reporting only whether the job was accepted.
func (p *Pool[T]) TrySubmit(job Job[T]) bool {
	return p.Submit(job) == nil
}

// Shutdown stops the pool. The state transition happens on the first
// call only; every call waits for the workers to be joined or for ctx
// to end, whichever comes first. When ctx ends first, Shutdown returns
// ctx.Err() and the pool keeps stopping in the background.
func (p *Pool[T]) Shutdown(ctx context.Context, mode ShutdownMode) error {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.state.Store(int32(PoolDraining))
		p.mu.Unlock()
		// idle workers stay parked in Recv until the queue closes
		for _, w := range p.workers {
			w.markDraining()
		}

		lg.FromContext(p.opts.Ctx).Info("Pool shutting down",
			lg.String("pool", p.id),
			lg.String("mode", mode.String()),
			lg.Int("queued", p.queue.Len()),
		)
		if mode == Immediate {
			p.stopping.Store(true)
			close(p.stopCh)
		}
		go p.drain(mode)
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down gracefully and blocks until every worker has exited.
func (p *Pool[T]) Stop() { _ = p.Shutdown(context.Background(), Graceful) }

// StopNow shuts down immediately and blocks until every worker has exited.
func (p *Pool[T]) StopNow() { _ = p.Shutdown(context.Background(), Immediate) }

func (p *Pool[T]) drain(mode ShutdownMode) {
	if mode == Graceful {
		// the queue stays open so retries keep flowing
		p.outstanding.Wait()
	}
	p.queue.Close()
	if mode == Immediate {
		for _, t := range p.queue.Drain() {
			p.finish(t, t.abandoned())
		}
	}
	p.wg.Wait()
	p.state.Store(int32(PoolStopped))

	s := p.Stats()
	lg.FromContext(p.opts.Ctx).Info("Pool stopped",
		lg.String("pool", p.id),
		lg.Any("completed", s.Completed),
		lg.Any("failed", s.Failed),
		lg.Any("dropped", s.Dropped),
	)
	close(p.done)
}

// finish records the final outcome of t. It is called exactly once per
// accepted job.
func (p *Pool[T]) finish(t *task[T], o Outcome[T]) {
	switch o.Kind {
	case OutcomeSuccess:
		p.stats.IncCompleted()
		p.metrics(MetricsPolicy.IncCompleted)
	case OutcomeUnprocessed:
		p.stats.IncDropped()
		p.metrics(MetricsPolicy.IncDropped)
	default:
		p.stats.IncFailed()
		p.metrics(MetricsPolicy.IncFailed)
		p.reportJobError(o.Err)
		lg.FromContext(t.ctx()).Error("Job failed",
			lg.String("pool", p.id),
			lg.Any("job", t.id),
			lg.String("outcome", o.Kind.String()),
			lg.Int("attempts", o.Attempts),
			lg.Any("error", o.Err),
		)
	}

	if meta := t.job.Meta; meta != nil && meta.CleanupFunc != nil {
		p.safeCall(meta.CleanupFunc, "CleanupFunc")
	}
	if t.job.Done != nil {
		p.safeCall(func() { t.job.Done(o) }, "Done")
	}
	p.outstanding.Done()
}

// Stats returns a point-in-time snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats { return p.stats.Snapshot() }

// State returns the lifecycle state.
func (p *Pool[T]) State() PoolState { return PoolState(p.state.Load()) }

// Workers returns the configured worker count.
func (p *Pool[T]) Workers() int { return len(p.workers) }

// ActiveWorkers returns how many workers are executing a job right now.
func (p *Pool[T]) ActiveWorkers() int32 { return p.activeWorkers.Load() }

// QueueLength returns the approximate number of queued jobs.
func (p *Pool[T]) QueueLength() int { return p.queue.Len() }

// WorkerCores returns the core each worker is pinned to, or -1 for
// workers running unpinned.
func (p *Pool[T]) WorkerCores() []int {
	out := make([]int, len(p.workers))
	for i, w := range p.workers {
		out[i] = int(w.core.Load())
	}
	return out
}

// WorkerStates returns the state of every worker.
func (p *Pool[T]) WorkerStates() []WorkerState {
	out := make([]WorkerState, len(p.workers))
	for i, w := range p.workers {
		out[i] = WorkerState(w.state.Load())
	}
	return out
}
