//go:build !linux || drudge_noaffinity

package drudge

// AffinitySupported reports whether worker pinning is compiled in.
const AffinitySupported = false

// PinToCPU always fails without affinity support.
func PinToCPU(int) error { return ErrAffinityUnsupported }

func availableCores() []int { return nil }
