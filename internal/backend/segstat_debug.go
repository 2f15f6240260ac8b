//go:build debug

package backend

import (
	"sync/atomic"
)

var (
	allocated atomic.Int64
	recycled  atomic.Int64
	consumed  atomic.Int64
	casMiss   atomic.Int64
)

// Stats counts segment lifecycle events of the segmented backend.
type Stats struct {
	Allocated int64
	Recycled  int64
	Consumed  int64
	CASMiss   int64
}

func statAllocated() { allocated.Add(1) }
func statRecycled()  { recycled.Add(1) }
func statConsumed()  { consumed.Add(1) }
func statCASMiss()   { casMiss.Add(1) }

// SnapshotStats returns the segment counters collected so far.
func SnapshotStats() Stats {
	return Stats{
		Allocated: allocated.Load(),
		Recycled:  recycled.Load(),
		Consumed:  consumed.Load(),
		CASMiss:   casMiss.Load(),
	}
}
