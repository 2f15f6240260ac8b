package drudge

import (
	"context"
	"fmt"
	"runtime"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Unbounded is the Options.Capacity value requesting an unbounded queue.
const Unbounded = 0

// ShutdownMode selects how Shutdown treats queued work.
type ShutdownMode int

const (
	// Graceful stops accepting jobs and runs every accepted job to
	// completion or retry exhaustion before joining the workers.
	Graceful ShutdownMode = iota

	// Immediate stops accepting jobs, drops queued jobs without running
	// them and stops each worker at its next job boundary.
	Immediate
)

func (m ShutdownMode) String() string {
	switch m {
	case Graceful:
		return "graceful"
	case Immediate:
		return "immediate"
	default:
		return "unknown"
	}
}

// Options configure a worker Pool. Options are copied by New and are
// immutable afterwards.
//
// Zero values are replaced with defaults in FillDefaults.
type Options struct {
	// Workers is the number of worker threads. Zero means one per
	// detected CPU core.
	Workers int

	// Capacity bounds the job queue. Unbounded (0) lets the linked
	// backend grow without limit.
	Capacity int

	// Retry is the default retry policy, overridable per job.
	Retry RetryPolicy

	// PinWorkers pins worker i to core i modulo the discoverable cores.
	PinWorkers bool

	// CoreTable maps worker index to core id. A non-nil table enables
	// pinning; workers beyond its length run unpinned.
	CoreTable []int

	// Ctx carries the logger used for pool lifecycle events.
	Ctx context.Context

	Metrics MetricsPolicy
	Tracer  trace.Tracer

	// OnJobError receives the cause of every terminal job failure.
	OnJobError func(error)

	// OnInternalError receives failures that are not job results, such
	// as a denied pin or a requeue that raced with shutdown.
	OnInternalError func(error)
}

// FillDefaults replaces zero values with defaults.
func (o *Options) FillDefaults() {
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}
	o.Retry = o.Retry.normalize()
	if o.Ctx == nil {
		o.Ctx = context.Background()
	}
	if o.Metrics == nil {
		o.Metrics = &NoopMetrics{}
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("github.com/azargarov/drudge")
	}
}

// Validate reports structurally invalid options as a *ConfigError.
// Core ids that are valid but not discoverable are not an error; those
// workers run unpinned.
func (o *Options) Validate() error {
	if o.Workers < 1 {
		return &ConfigError{Field: "Workers", Reason: fmt.Sprintf("must be at least 1, got %d", o.Workers)}
	}
	if o.Capacity < 0 {
		return &ConfigError{Field: "Capacity", Reason: fmt.Sprintf("must not be negative, got %d", o.Capacity)}
	}
	for i, core := range o.CoreTable {
		if core < 0 {
			return &ConfigError{Field: "CoreTable", Reason: fmt.Sprintf("entry %d has negative core id %d", i, core)}
		}
	}
	return o.Retry.validate()
}

func (o *Options) pinning() bool {
	return o.PinWorkers || o.CoreTable != nil
}
