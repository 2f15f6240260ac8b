// Package backend holds the channel implementations a drudge pool can be
// built on. Every backend satisfies Queue with identical closing semantics;
// the pool links exactly one of them at compile time.
package backend

import (
	"errors"

	"golang.org/x/sys/cpu"
)

// cachePad is used to prevent false sharing between hot fields.
type cachePad = cpu.CacheLinePad

var (
	// ErrClosed is returned by Send and Resend once Close has been called.
	ErrClosed = errors.New("backend: queue closed")

	// ErrDisconnected is returned by Recv once the queue is closed and
	// every buffered item has been received.
	ErrDisconnected = errors.New("backend: queue closed and drained")

	// ErrFull is returned by Send when a bounded queue is at capacity.
	ErrFull = errors.New("backend: queue is full")
)

// Options configure a backend queue.
type Options struct {
	// Capacity bounds the number of items accepted through Send.
	// Zero or negative means unbounded (backend-dependent for Chan).
	Capacity int

	// Reserve is extra room kept for Resend so that requeueing never
	// blocks on a bounded queue. The pool sets it to its worker count.
	Reserve int
}

// Queue is the multi-producer, multi-consumer contract shared by all
// backends.
//
// Ordering across producers is not guaranteed. While the queue is open
// no item is duplicated or dropped.
type Queue[E any] interface {
	// Send enqueues e without blocking.
	Send(e E) error

	// Resend enqueues e ignoring the capacity bound. It only fails
	// with ErrClosed.
	Resend(e E) error

	// Recv blocks until an item is available. It returns ErrDisconnected
	// only when the queue is closed and drained.
	Recv() (E, error)

	// Close rejects further sends and wakes every blocked receiver.
	// Buffered items stay available to Recv. Close is idempotent.
	Close()

	// Drain removes and returns every buffered item.
	Drain() []E

	// Len reports an approximate number of buffered items.
	Len() int
}

var (
	_ Queue[int] = (*Chan[int])(nil)
	_ Queue[int] = (*Segmented[int])(nil)
	_ Queue[int] = (*Deque[int])(nil)
)
