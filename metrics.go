package drudge

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"
)

// MetricsPolicy defines hooks used by the worker pool to report
// queueing and execution activity.
//
// Implementations must be safe for concurrent use.
// All methods are expected to be lightweight and non-blocking.
// A panicking hook is recovered and reported to OnInternalError; the
// job it was counting is unaffected.
type MetricsPolicy interface {
	// IncSubmitted counts a job accepted by Submit.
	IncSubmitted()

	// IncCompleted counts a job that succeeded.
	IncCompleted()

	// IncFailed counts a terminal failure.
	IncFailed()

	// IncRetried counts a requeue.
	IncRetried()

	// IncDropped counts a job dropped by Immediate shutdown.
	IncDropped()

	// ObserveRun records the duration of one attempt.
	ObserveRun(d time.Duration)
}

// Stats is a snapshot of the pool counters. Each counter is read
// atomically; the snapshot is not consistent across counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	Retried   uint64
	Dropped   uint64

	// InFlight is Submitted minus every final outcome: jobs queued,
	// running or waiting for a requeue.
	InFlight int64
}

// AtomicMetrics is a lock-free metrics implementation backed by atomics.
//
// Writes are optimized for hot paths.
// Reads are intended for cold-path observation.
type AtomicMetrics struct {
	submitted atomic.Uint64
	_         cpu.CacheLinePad
	completed atomic.Uint64
	_         cpu.CacheLinePad
	failed    atomic.Uint64
	_         cpu.CacheLinePad
	retried   atomic.Uint64
	dropped   atomic.Uint64
	runNanos  atomic.Int64
}

func (m *AtomicMetrics) IncSubmitted() { m.submitted.Add(1) }
func (m *AtomicMetrics) IncCompleted() { m.completed.Add(1) }
func (m *AtomicMetrics) IncFailed()    { m.failed.Add(1) }
func (m *AtomicMetrics) IncRetried()   { m.retried.Add(1) }
func (m *AtomicMetrics) IncDropped()   { m.dropped.Add(1) }

// ObserveRun accumulates attempt durations.
func (m *AtomicMetrics) ObserveRun(d time.Duration) { m.runNanos.Add(int64(d)) }

// unsubmit reverts IncSubmitted for a job the queue refused.
func (m *AtomicMetrics) unsubmit() { m.submitted.Add(^uint64(0)) }

// RunTime returns the total time spent executing attempts.
func (m *AtomicMetrics) RunTime() time.Duration { return time.Duration(m.runNanos.Load()) }

// Snapshot returns the current counters.
func (m *AtomicMetrics) Snapshot() Stats {
	s := Stats{
		Completed: m.completed.Load(),
		Failed:    m.failed.Load(),
		Dropped:   m.dropped.Load(),
		Retried:   m.retried.Load(),
	}
	// submitted is read last so InFlight never goes negative
	s.Submitted = m.submitted.Load()
	s.InFlight = int64(s.Submitted) - int64(s.Completed+s.Failed+s.Dropped)
	return s
}

//------------- NoopMetrics ----------------------------------

// NoopMetrics is a MetricsPolicy implementation that discards
// all metric updates.
type NoopMetrics struct{}

func (*NoopMetrics) IncSubmitted()              {}
func (*NoopMetrics) IncCompleted()              {}
func (*NoopMetrics) IncFailed()                 {}
func (*NoopMetrics) IncRetried()                {}
func (*NoopMetrics) IncDropped()                {}
func (*NoopMetrics) ObserveRun(_ time.Duration) {}
