package drudge

import (
	"slices"
)

// unpinned is the core reported for a worker running without affinity.
const unpinned = -1

// assignor maps worker index to a core id.
type assignor struct {
	enabled bool
	cores   []int // discoverable cores, ascending
	table   []int
}

func newAssignor(opts *Options, cores []int) assignor {
	return assignor{
		enabled: opts.pinning(),
		cores:   cores,
		table:   opts.CoreTable,
	}
}

// assign returns the core for worker i. ok is false when the worker
// should run unpinned, which is never an error.
func (a assignor) assign(i int) (core int, ok bool) {
	if !a.enabled || len(a.cores) == 0 {
		return unpinned, false
	}
	if a.table == nil {
		return a.cores[i%len(a.cores)], true
	}
	if i >= len(a.table) {
		return unpinned, false
	}
	core = a.table[i]
	if _, found := slices.BinarySearch(a.cores, core); !found {
		return unpinned, false
	}
	return core, true
}

// AvailableCores lists the cores this process may run on. It is empty
// when affinity is unsupported.
func AvailableCores() []int {
	return availableCores()
}
