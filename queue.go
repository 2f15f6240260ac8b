package drudge

import (
	"github.com/azargarov/drudge/internal/backend"
)

// jobQueue embeds the backend selected by build tags (see queue_*.go).
// The pool only ever calls it through these promoted methods, so the
// backend is resolved at compile time.
var _ backend.Queue[*task[int]] = jobQueue[int]{}

func queueOptions(opts *Options) backend.Options {
	return backend.Options{
		Capacity: opts.Capacity,
		Reserve:  opts.Workers,
	}
}
