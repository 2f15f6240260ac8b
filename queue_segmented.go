//go:build drudge_segmented

package drudge

import (
	"github.com/azargarov/drudge/internal/backend"
)

// BackendName identifies the channel backend linked into this build.
const BackendName = "segmented"

type jobQueue[T any] struct {
	*backend.Segmented[*task[T]]
}

func openQueue[T any](opts *Options) jobQueue[T] {
	return jobQueue[T]{backend.NewSegmented[*task[T]](queueOptions(opts))}
}
