package backend

import (
	"sync"

	"github.com/gammazero/deque"
)

// Deque is a Queue backed by a growable ring buffer guarded by a mutex.
// Receivers park on a condition variable.
type Deque[E any] struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond // signalled on push, broadcast on close
	q        *deque.Deque[E]
	closed   bool
	capacity int
}

// NewDeque creates a deque backend. Reserve is ignored: the ring buffer
// grows as needed, so Resend always has room.
func NewDeque[E any](opts Options) *Deque[E] {
	d := &Deque[E]{
		q:        deque.New[E](),
		capacity: max(opts.Capacity, 0),
	}
	d.nonEmpty = sync.NewCond(&d.mu)
	return d
}

func (d *Deque[E]) Send(e E) error {
	return d.push(e, true)
}

func (d *Deque[E]) Resend(e E) error {
	return d.push(e, false)
}

func (d *Deque[E]) push(e E, bounded bool) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if bounded && d.capacity > 0 && d.q.Len() >= d.capacity {
		d.mu.Unlock()
		return ErrFull
	}
	d.q.PushBack(e)
	d.mu.Unlock()
	d.nonEmpty.Signal()
	return nil
}

func (d *Deque[E]) Recv() (E, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.q.Len() == 0 && !d.closed {
		d.nonEmpty.Wait()
	}
	if d.q.Len() == 0 {
		var zero E
		return zero, ErrDisconnected
	}
	return d.q.PopFront(), nil
}

func (d *Deque[E]) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.nonEmpty.Broadcast()
}

func (d *Deque[E]) Drain() []E {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]E, 0, d.q.Len())
	for d.q.Len() > 0 {
		out = append(out, d.q.PopFront())
	}
	return out
}

func (d *Deque[E]) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.Len()
}
