//go:build !drudge_segmented && !drudge_deque

package drudge

import (
	"github.com/azargarov/drudge/internal/backend"
)

// BackendName identifies the channel backend linked into this build.
const BackendName = "chan"

type jobQueue[T any] struct {
	*backend.Chan[*task[T]]
}

func openQueue[T any](opts *Options) jobQueue[T] {
	return jobQueue[T]{backend.NewChan[*task[T]](queueOptions(opts))}
}
