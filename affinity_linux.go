//go:build linux && !drudge_noaffinity

package drudge

import (
	"golang.org/x/sys/unix"
)

// AffinitySupported reports whether worker pinning is compiled in.
const AffinitySupported = true

// maxCPUProbe bounds the scan of the affinity mask.
const maxCPUProbe = 1 << 12

// PinToCPU restricts the calling OS thread to cpu. Callers must hold
// runtime.LockOSThread.
func PinToCPU(cpu int) error {
	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpu)
	return unix.SchedSetaffinity(0, &mask)
}

func availableCores() []int {
	var mask unix.CPUSet
	if err := unix.SchedGetaffinity(0, &mask); err != nil {
		return nil
	}
	n := mask.Count()
	cores := make([]int, 0, n)
	for cpu := 0; len(cores) < n && cpu < maxCPUProbe; cpu++ {
		if mask.IsSet(cpu) {
			cores = append(cores, cpu)
		}
	}
	return cores
}
