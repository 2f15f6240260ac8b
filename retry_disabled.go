//go:build drudge_noretry

package drudge

// RetryEnabled reports whether the retry capability is compiled in.
const RetryEnabled = false
