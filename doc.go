// Package drudge provides a fixed-size worker pool with a build-time
// selectable queue backend, optional CPU pinning and a retry engine that
// contains job panics.
//
// Architecture overview
//
// A Pool is composed of three loosely coupled layers:
//
//  1. Queue (internal/backend)
//     A multi-producer multi-consumer FIFO shared by all workers. The
//     implementation is chosen when the program is built:
//
//     default           native Go channel
//     drudge_segmented  lock-free segmented queue
//     drudge_deque      mutex-guarded ring deque
//
//     BackendName reports which one was linked in.
//
//  2. Workers
//     Each worker owns one OS thread for its whole life and may be
//     pinned to a core (Options.PinWorkers or Options.CoreTable). Pinning
//     is a no-op on platforms without an affinity syscall, or when built
//     with drudge_noaffinity.
//
//  3. Job lifecycle
//     A job carries its payload, function, optional retry override and
//     optional Done callback. Each job reaches exactly one Outcome.
//
// Retries
//
// A failed or panicking attempt is sent to the back of the queue until the
// job's attempt budget is spent. Errors wrapped with Permanent are never
// retried. Building with drudge_noretry limits every job to one attempt.
//
// A panic inside a job never takes a worker down. It is reported as a
// *PanicError carrying the recovered value and stack.
//
// Shutdown
//
// Graceful shutdown runs every accepted job, retries included, to its
// final outcome. Immediate shutdown lets in-flight attempts finish and
// reports everything still queued as OutcomeUnprocessed.
//
// Logging
//
// Lifecycle events are logged through the zlog logger carried by
// Options.Ctx; per-job events use the logger in the job's JobMeta.Ctx.
package drudge
