package backend

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// DefaultChanBuffer is the channel buffer Chan uses for an unbounded
// queue. Items that do not fit wait in an overflow deque and move into
// the channel as receivers free slots.
const DefaultChanBuffer = 1 << 12

// Chan is a Queue backed by a native buffered Go channel.
//
// Sends never block. A bounded Chan counts admission against the
// capacity before the channel write, and the channel is sized
// capacity+reserve so that requeued items always fit.
type Chan[E any] struct {
	mu     sync.RWMutex // write-held only by Close
	closed bool

	ch       chan E
	capacity int64 // zero when unbounded

	// size counts admitted items that have not been received yet.
	size atomic.Int64

	// Unbounded mode only. pending is raised before every send attempt
	// and stays raised while the item sits in overflow, so a receiver
	// that frees a slot always sees there is work to move.
	ovMu     sync.Mutex
	overflow *deque.Deque[E]
	pending  atomic.Int64
	// closeWait defers closing ch until overflow is empty.
	closeWait bool
}

// NewChan creates a channel backend.
func NewChan[E any](opts Options) *Chan[E] {
	if opts.Capacity <= 0 {
		return &Chan[E]{
			ch:       make(chan E, DefaultChanBuffer),
			overflow: deque.New[E](),
		}
	}
	reserve := max(opts.Reserve, 0)
	return &Chan[E]{
		ch:       make(chan E, opts.Capacity+reserve),
		capacity: int64(opts.Capacity),
	}
}

func (c *Chan[E]) unbounded() bool { return c.capacity == 0 }

func (c *Chan[E]) Send(e E) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	if c.unbounded() {
		c.size.Add(1)
		c.push(e)
		return nil
	}
	if c.size.Add(1) > c.capacity {
		c.size.Add(-1)
		return ErrFull
	}
	c.ch <- e
	return nil
}

func (c *Chan[E]) Resend(e E) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	c.size.Add(1)
	if c.unbounded() {
		c.push(e)
		return nil
	}
	c.ch <- e
	return nil
}

// push writes e to the channel, or to the overflow when the channel is
// full or older items are already waiting there. Callers hold mu.RLock,
// so ch cannot be closed underneath.
func (c *Chan[E]) push(e E) {
	c.pending.Add(1)
	c.ovMu.Lock()
	defer c.ovMu.Unlock()
	if c.overflow.Len() == 0 {
		select {
		case c.ch <- e:
			c.pending.Add(-1)
			return
		default:
		}
	}
	c.overflow.PushBack(e)
}

// refill moves overflow items into free channel slots and completes a
// deferred Close once the overflow is empty.
func (c *Chan[E]) refill() {
	c.ovMu.Lock()
	defer c.ovMu.Unlock()
	for c.overflow.Len() > 0 {
		select {
		case c.ch <- c.overflow.Front():
			c.overflow.PopFront()
			c.pending.Add(-1)
		default:
			return
		}
	}
	if c.closeWait {
		c.closeWait = false
		close(c.ch)
	}
}

func (c *Chan[E]) Recv() (E, error) {
	e, ok := <-c.ch
	if !ok {
		var zero E
		return zero, ErrDisconnected
	}
	c.size.Add(-1)
	if c.pending.Load() > 0 {
		c.refill()
	}
	return e, nil
}

func (c *Chan[E]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.unbounded() {
		c.ovMu.Lock()
		defer c.ovMu.Unlock()
		if c.overflow.Len() > 0 {
			// the receiver that moves the last overflow item closes ch
			c.closeWait = true
			return
		}
	}
	close(c.ch)
}

func (c *Chan[E]) Drain() []E {
	if c.unbounded() {
		c.ovMu.Lock()
		defer c.ovMu.Unlock()
	}
	var out []E
recv:
	for {
		select {
		case e, ok := <-c.ch:
			if !ok {
				return out
			}
			c.size.Add(-1)
			out = append(out, e)
		default:
			break recv
		}
	}
	if !c.unbounded() {
		return out
	}
	for c.overflow.Len() > 0 {
		out = append(out, c.overflow.PopFront())
		c.pending.Add(-1)
		c.size.Add(-1)
	}
	if c.closeWait {
		c.closeWait = false
		close(c.ch)
	}
	return out
}

func (c *Chan[E]) Len() int { return int(c.size.Load()) }
