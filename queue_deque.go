//go:build drudge_deque && !drudge_segmented

package drudge

import (
	"github.com/azargarov/drudge/internal/backend"
)

// BackendName identifies the channel backend linked into this build.
const BackendName = "deque"

type jobQueue[T any] struct {
	*backend.Deque[*task[T]]
}

func openQueue[T any](opts *Options) jobQueue[T] {
	return jobQueue[T]{backend.NewDeque[*task[T]](queueOptions(opts))}
}
