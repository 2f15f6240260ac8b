//go:build !debug

package backend

// Stats counts segment lifecycle events. Only populated in debug builds.
type Stats struct {
	Allocated int64
	Recycled  int64
	Consumed  int64
	CASMiss   int64
}

func statAllocated() {}
func statRecycled()  {}
func statConsumed()  {}
func statCASMiss()   {}

// SnapshotStats always returns zero counters outside debug builds.
func SnapshotStats() Stats { return Stats{} }
