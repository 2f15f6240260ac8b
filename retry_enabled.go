//go:build !drudge_noretry

package drudge

// RetryEnabled reports whether the retry capability is compiled in.
// Build with -tags drudge_noretry to fix every policy at one attempt.
const RetryEnabled = true
