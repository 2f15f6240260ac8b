package backend

import (
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	// DefaultSegmentSize is the default number of slots per segment.
	// It should be large enough to amortize allocation costs but
	// small enough to fit comfortably in cache.
	DefaultSegmentSize = 4096

	// spinBeforePark is how many failed pops a receiver tolerates
	// before parking on the wake channel.
	spinBeforePark = 64
)

// DefaultSegmentCount defines the default number of preallocated segments.
// It scales with GOMAXPROCS to reduce contention under load.
var DefaultSegmentCount = runtime.GOMAXPROCS(0) * 4

// producerView contains fields frequently modified by producers.
type producerView struct {
	reserve uint32
	_       cachePad
}

// consumerView contains fields frequently modified by consumers.
type consumerView struct {
	head uint32
	_    cachePad
}

// segment is a fixed-size chunk of slots forming a node in a linked list.
//
// Segments move through the following logical states:
//
//	active -> detached -> recycled
//
// Synchronization strategy:
//   - producers reserve slots using CAS
//   - consumers claim one slot at a time via head advancement
//   - generation counters prevent ABA on slot reuse
//   - refs counters ensure safe reclamation
type segment[E any] struct {
	producer producerView
	consumer consumerView

	// gen distinguishes reused slots without clearing the ready array.
	gen atomic.Uint32

	// detached marks the segment as removed from the queue.
	detached atomic.Uint32
	_        cachePad

	// refs counts producers and consumers holding the segment.
	refs atomic.Int32
	_    cachePad

	buf []E

	// ready[i] == gen marks slot i as written in the current generation.
	ready []uint32
	_     cachePad

	next atomic.Pointer[segment[E]]
}

func mkSegment[E any](size uint32) *segment[E] {
	seg := &segment[E]{
		buf:   make([]E, size),
		ready: make([]uint32, size),
	}
	seg.gen.Store(1)
	statAllocated()
	return seg
}

// tryAddRef acquires a reference unless the segment is detached.
func (s *segment[E]) tryAddRef() bool {
	if s.detached.Load() != 0 {
		return false
	}
	s.refs.Add(1)
	if s.detached.Load() != 0 {
		s.refs.Add(-1)
		return false
	}
	return true
}

// segmentPool keeps detached segments for reuse.
type segmentPool[E any] struct {
	mu      sync.Mutex
	maxKeep int
	free    []*segment[E]
}

func (p *segmentPool[E]) put(seg *segment[E]) {
	p.mu.Lock()
	if len(p.free) < p.maxKeep {
		p.free = append(p.free, seg)
	}
	p.mu.Unlock()
	statRecycled()
}

func (p *segmentPool[E]) get(size uint32) *segment[E] {
	p.mu.Lock()
	n := len(p.free)
	if n == 0 {
		p.mu.Unlock()
		return mkSegment[E](size)
	}
	seg := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	p.mu.Unlock()
	statConsumed()
	return seg
}

// segmentedQ is the lock-free linked list of segments.
type segmentedQ[E any] struct {
	head atomic.Pointer[segment[E]]
	tail atomic.Pointer[segment[E]]

	pool     segmentPool[E]
	pageSize uint32
}

func newSegmentedQ[E any](pageSize uint32, prealloc int) *segmentedQ[E] {
	q := &segmentedQ[E]{pageSize: pageSize}
	q.pool.maxKeep = max(prealloc*2, 2)
	q.pool.free = make([]*segment[E], 0, q.pool.maxKeep)
	for range prealloc {
		q.pool.free = append(q.pool.free, mkSegment[E](pageSize))
	}
	first := q.pool.get(pageSize)
	q.head.Store(first)
	q.tail.Store(first)
	return q
}

// push appends v. It is lock-free and safe for concurrent producers.
func (q *segmentedQ[E]) push(v E) {
	for {
		seg := q.tail.Load()
		if !seg.tryAddRef() {
			continue
		}
		g := seg.gen.Load()
		if q.tail.Load() != seg {
			seg.refs.Add(-1)
			continue
		}

		for {
			r := atomic.LoadUint32(&seg.producer.reserve)
			if r >= q.pageSize {
				break
			}
			if atomic.CompareAndSwapUint32(&seg.producer.reserve, r, r+1) {
				seg.buf[r] = v
				atomic.StoreUint32(&seg.ready[r], g)
				seg.refs.Add(-1)
				return
			}
			statCASMiss()
		}

		next := seg.next.Load()
		if next == nil {
			fresh := q.pool.get(q.pageSize)
			if seg.next.CompareAndSwap(nil, fresh) {
				next = fresh
			} else {
				q.pool.put(fresh)
				next = seg.next.Load()
			}
		}
		q.tail.CompareAndSwap(seg, next)
		seg.refs.Add(-1)
	}
}

// pop removes one item. The boolean is false when no written slot is
// available right now.
func (q *segmentedQ[E]) pop() (E, bool) {
	var zero E
	for {
		seg := q.head.Load()
		if !seg.tryAddRef() {
			continue
		}
		if q.head.Load() != seg {
			seg.refs.Add(-1)
			continue
		}

		h := atomic.LoadUint32(&seg.consumer.head)
		limit := min(atomic.LoadUint32(&seg.producer.reserve), q.pageSize)
		g := seg.gen.Load()

		if h < limit && atomic.LoadUint32(&seg.ready[h]) == g {
			if atomic.CompareAndSwapUint32(&seg.consumer.head, h, h+1) {
				v := seg.buf[h]
				seg.buf[h] = zero
				seg.refs.Add(-1)
				return v, true
			}
			seg.refs.Add(-1)
			continue
		}

		if h >= q.pageSize {
			if next := seg.next.Load(); next != nil {
				if q.head.CompareAndSwap(seg, next) && seg.detached.CompareAndSwap(0, 1) {
					seg.refs.Add(-1)
					q.tryRecycle(seg)
					continue
				}
				seg.refs.Add(-1)
				continue
			}
		}

		seg.refs.Add(-1)
		return zero, false
	}
}

// tryRecycle returns a detached segment to the pool once nobody holds
// it. Segments still referenced are left to the garbage collector.
func (q *segmentedQ[E]) tryRecycle(seg *segment[E]) {
	if seg.detached.Load() == 0 || seg.refs.Load() != 0 {
		return
	}
	if q.head.Load() == seg || q.tail.Load() == seg {
		return
	}

	atomic.StoreUint32(&seg.consumer.head, 0)
	atomic.StoreUint32(&seg.producer.reserve, 0)
	seg.next.Store(nil)

	if seg.gen.Add(1) == 0 {
		seg.gen.Store(1)
	}
	seg.detached.Store(0)
	q.pool.put(seg)
}

// maybeHasWork is a fast, approximate check for available items.
func (q *segmentedQ[E]) maybeHasWork() bool {
	seg := q.head.Load()
	h := atomic.LoadUint32(&seg.consumer.head)
	r := atomic.LoadUint32(&seg.producer.reserve)
	return r > h || seg.next.Load() != nil
}

// SegmentedOptions tune the segmented backend.
type SegmentedOptions struct {
	SegmentSize  uint32
	SegmentCount int
}

// Segmented is a Queue built on the lock-free segmented list.
//
// Producers never take a lock on the hot path other than the read side
// of the close guard. Idle receivers spin briefly, then park on a
// one-token wake channel; a receiver that takes an item re-arms the
// token when more work is visible, so wake-ups chain across receivers.
type Segmented[E any] struct {
	q *segmentedQ[E]

	mu     sync.RWMutex // write-held only by Close
	closed bool
	done   chan struct{}
	wake   chan struct{}

	capacity int64
	size     atomic.Int64
}

// NewSegmented creates a segmented backend with default tuning.
func NewSegmented[E any](opts Options) *Segmented[E] {
	return NewSegmentedWith[E](opts, SegmentedOptions{})
}

// NewSegmentedWith creates a segmented backend with explicit tuning.
// Zero tuning values fall back to the defaults.
func NewSegmentedWith[E any](opts Options, so SegmentedOptions) *Segmented[E] {
	if so.SegmentSize == 0 {
		so.SegmentSize = DefaultSegmentSize
	}
	if so.SegmentCount <= 0 {
		so.SegmentCount = DefaultSegmentCount
	}
	return &Segmented[E]{
		q:        newSegmentedQ[E](so.SegmentSize, so.SegmentCount),
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
		capacity: int64(max(opts.Capacity, 0)),
	}
}

func (s *Segmented[E]) Send(e E) error {
	return s.push(e, true)
}

func (s *Segmented[E]) Resend(e E) error {
	return s.push(e, false)
}

func (s *Segmented[E]) push(e E, bounded bool) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	n := s.size.Add(1)
	if bounded && s.capacity > 0 && n > s.capacity {
		s.size.Add(-1)
		s.mu.RUnlock()
		return ErrFull
	}
	s.q.push(e)
	s.mu.RUnlock()
	s.notify()
	return nil
}

func (s *Segmented[E]) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Segmented[E]) Recv() (E, error) {
	for {
		for range spinBeforePark {
			if e, ok := s.take(); ok {
				return e, nil
			}
			runtime.Gosched()
		}

		select {
		case <-s.wake:
		case <-s.done:
			// Close waits for in-progress sends, so an empty pop here
			// means the queue is drained.
			if e, ok := s.take(); ok {
				return e, nil
			}
			var zero E
			return zero, ErrDisconnected
		}
	}
}

func (s *Segmented[E]) take() (E, bool) {
	e, ok := s.q.pop()
	if !ok {
		return e, false
	}
	s.size.Add(-1)
	if s.q.maybeHasWork() {
		s.notify()
	}
	return e, true
}

func (s *Segmented[E]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

func (s *Segmented[E]) Drain() []E {
	var out []E
	for {
		e, ok := s.take()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func (s *Segmented[E]) Len() int { return int(s.size.Load()) }
