package drudge

import (
	"errors"
	"fmt"

	"github.com/azargarov/drudge/internal/backend"
)

var (
	// ErrPoolClosed is returned by Submit once Shutdown has started.
	ErrPoolClosed = errors.New("drudge: pool closed")

	// ErrQueueFull is returned by Submit when a bounded queue is full.
	ErrQueueFull = errors.New("drudge: queue is full")

	// ErrNilFunc is returned when a submitted Job has a nil Fn.
	ErrNilFunc = errors.New("drudge: job func is nil")

	// ErrPoolShuttingDown is the terminal cause of a job whose requeue
	// was refused because the pool is stopping.
	ErrPoolShuttingDown = errors.New("drudge: pool shutting down")

	// ErrJobExited is the failure recorded for a job that called
	// runtime.Goexit.
	ErrJobExited = errors.New("drudge: job exited its goroutine")

	// ErrAffinityUnsupported is returned by PinToCPU when the build or
	// platform has no affinity support.
	ErrAffinityUnsupported = errors.New("drudge: cpu affinity unsupported")

	// ErrClosed and ErrDisconnected are the channel backend errors.
	ErrClosed       = backend.ErrClosed
	ErrDisconnected = backend.ErrDisconnected
)

// ConfigError reports invalid pool options.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("drudge: invalid %s: %s", e.Field, e.Reason)
}

// PanicError is the failure recorded for a job that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("drudge: job panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable: a job returning it fails
// terminally regardless of the remaining attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// IndexError attributes a batch failure to its input index.
type IndexError struct {
	Index int
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("drudge: input %d: %v", e.Index, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }
