package drudge

import (
	"fmt"
)

// reportInternalError reports an internal pool error.
//
// Internal errors are non-job-related failures such as
// worker setup issues or shutdown races.
// If no handler is registered, the error is silently ignored.
func (p *Pool[T]) reportInternalError(e error) {
	if p.opts.OnInternalError != nil {
		p.safeCall(func() { p.opts.OnInternalError(e) }, "OnInternalError")
	}
}

// reportJobError reports the cause of a terminal job failure.
//
// Job errors do not stop pool execution.
func (p *Pool[T]) reportJobError(err error) {
	if p.opts.OnJobError != nil {
		p.safeCall(func() { p.opts.OnJobError(err) }, "OnJobError")
	}
}

// metrics forwards one counter update to the user's MetricsPolicy under
// safeCall. The default no-op policy is skipped.
func (p *Pool[T]) metrics(fn func(MetricsPolicy)) {
	if p.noopMetrics {
		return
	}
	p.safeCall(func() { fn(p.opts.Metrics) }, "MetricsPolicy")
}

// safeCall runs a user callback so that a panic in it cannot take the
// worker down with it.
func (p *Pool[T]) safeCall(fn func(), name string) {
	defer func() {
		if r := recover(); r != nil {
			// OnInternalError may be the callback that panicked
			if name != "OnInternalError" {
				p.reportInternalError(fmt.Errorf("drudge: %s panicked: %v", name, r))
			}
		}
	}()
	fn()
}
