package backend

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type factory struct {
	name string
	open func(Options) Queue[int]
}

var factories = []factory{
	{"Chan", func(o Options) Queue[int] { return NewChan[int](o) }},
	{"Segmented", func(o Options) Queue[int] {
		// small segments exercise linking and recycling
		return NewSegmentedWith[int](o, SegmentedOptions{SegmentSize: 8, SegmentCount: 2})
	}},
	{"Deque", func(o Options) Queue[int] { return NewDeque[int](o) }},
}

func TestQueueContract(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T, open func(Options) Queue[int])
	}{
		{"SendRecv", testSendRecv},
		{"CloseKeepsBuffered", testCloseKeepsBuffered},
		{"CloseIdempotent", testCloseIdempotent},
		{"CloseWakesReceivers", testCloseWakesReceivers},
		{"BoundedFull", testBoundedFull},
		{"ResendIgnoresBound", testResendIgnoresBound},
		{"Drain", testDrain},
		{"NoLossNoDuplicate", testNoLossNoDuplicate},
		{"UnboundedAcceptsBeyondChanBuffer", testUnboundedAcceptsBeyondChanBuffer},
	}

	for _, f := range factories {
		f := f
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			for _, tc := range tests {
				tc := tc
				t.Run(tc.name, func(t *testing.T) {
					t.Parallel()
					tc.fn(t, f.open)
				})
			}
		})
	}
}

func testSendRecv(t *testing.T, open func(Options) Queue[int]) {
	q := open(Options{})
	for i := range 20 {
		if err := q.Send(i); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	seen := make(map[int]bool)
	for range 20 {
		v, err := q.Recv()
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		seen[v] = true
	}
	if len(seen) != 20 {
		t.Fatalf("received %d distinct items; want 20", len(seen))
	}
}

func testCloseKeepsBuffered(t *testing.T, open func(Options) Queue[int]) {
	q := open(Options{})
	_ = q.Send(1)
	_ = q.Send(2)
	q.Close()

	if err := q.Send(3); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close = %v; want ErrClosed", err)
	}
	if err := q.Resend(3); !errors.Is(err, ErrClosed) {
		t.Fatalf("resend after close = %v; want ErrClosed", err)
	}

	got := 0
	for {
		_, err := q.Recv()
		if errors.Is(err, ErrDisconnected) {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		got++
	}
	if got != 2 {
		t.Fatalf("drained %d items after close; want 2", got)
	}
}

func testCloseIdempotent(t *testing.T, open func(Options) Queue[int]) {
	q := open(Options{})
	q.Close()
	q.Close()
	if _, err := q.Recv(); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("recv on closed empty queue = %v; want ErrDisconnected", err)
	}
}

func testCloseWakesReceivers(t *testing.T, open func(Options) Queue[int]) {
	q := open(Options{})

	const receivers = 4
	var wg sync.WaitGroup
	errs := make(chan error, receivers)
	for range receivers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Recv()
			errs <- err
		}()
	}

	time.Sleep(20 * time.Millisecond)
	q.Close()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked receivers were not woken by Close")
	}
	close(errs)
	for err := range errs {
		if !errors.Is(err, ErrDisconnected) {
			t.Fatalf("recv = %v; want ErrDisconnected", err)
		}
	}
}

func testBoundedFull(t *testing.T, open func(Options) Queue[int]) {
	q := open(Options{Capacity: 2, Reserve: 1})
	if err := q.Send(1); err != nil {
		t.Fatal(err)
	}
	if err := q.Send(2); err != nil {
		t.Fatal(err)
	}
	if err := q.Send(3); !errors.Is(err, ErrFull) {
		t.Fatalf("send over capacity = %v; want ErrFull", err)
	}
	if _, err := q.Recv(); err != nil {
		t.Fatal(err)
	}
	if err := q.Send(3); err != nil {
		t.Fatalf("send after recv freed a slot: %v", err)
	}
}

func testResendIgnoresBound(t *testing.T, open func(Options) Queue[int]) {
	q := open(Options{Capacity: 1, Reserve: 1})
	if err := q.Send(1); err != nil {
		t.Fatal(err)
	}
	if err := q.Resend(2); err != nil {
		t.Fatalf("resend on full queue = %v; want nil", err)
	}
	if n := q.Len(); n != 2 {
		t.Fatalf("len = %d; want 2", n)
	}
}

func testDrain(t *testing.T, open func(Options) Queue[int]) {
	q := open(Options{})
	for i := range 30 {
		_ = q.Send(i)
	}
	q.Close()
	if got := len(q.Drain()); got != 30 {
		t.Fatalf("drained %d; want 30", got)
	}
	if _, err := q.Recv(); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("recv after drain = %v; want ErrDisconnected", err)
	}
}

func testNoLossNoDuplicate(t *testing.T, open func(Options) Queue[int]) {
	q := open(Options{})

	const producers = 16
	const perProducer = 2000
	const consumers = 8

	seen := make([]atomic.Int32, producers*perProducer)

	var cwg sync.WaitGroup
	for range consumers {
		cwg.Add(1)
		go func() {
			defer cwg.Done()
			for {
				v, err := q.Recv()
				if err != nil {
					return
				}
				seen[v].Add(1)
			}
		}()
	}

	var pwg sync.WaitGroup
	for p := range producers {
		pwg.Add(1)
		go func(id int) {
			defer pwg.Done()
			for j := range perProducer {
				if err := q.Send(id*perProducer + j); err != nil {
					t.Errorf("send: %v", err)
					return
				}
				if j%64 == 0 {
					runtime.Gosched()
				}
			}
		}(p)
	}

	pwg.Wait()
	q.Close()
	cwg.Wait()

	for i := range seen {
		if n := seen[i].Load(); n != 1 {
			t.Fatalf("item %d received %d times; want 1", i, n)
		}
	}
}

func testUnboundedAcceptsBeyondChanBuffer(t *testing.T, open func(Options) Queue[int]) {
	const n = 70000 // more than a 1<<16 channel buffer
	q := open(Options{Reserve: 4})
	for i := range n {
		if err := q.Send(i); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if got := q.Len(); got != n {
		t.Fatalf("len = %d; want %d", got, n)
	}

	seen := make([]bool, n)
	for range n / 2 {
		v, err := q.Recv()
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		if seen[v] {
			t.Fatalf("item %d received twice", v)
		}
		seen[v] = true
	}

	// what is left must survive Close and come back through Drain
	q.Close()
	if err := q.Send(-1); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close = %v; want ErrClosed", err)
	}
	rest := q.Drain()
	if len(rest) != n-n/2 {
		t.Fatalf("drained %d; want %d", len(rest), n-n/2)
	}
	for _, v := range rest {
		if seen[v] {
			t.Fatalf("item %d received twice", v)
		}
		seen[v] = true
	}
	if _, err := q.Recv(); !errors.Is(err, ErrDisconnected) {
		t.Fatalf("recv after drain = %v; want ErrDisconnected", err)
	}
}

func TestChanCloseWaitsForOverflow(t *testing.T) {
	q := NewChan[int](Options{})
	const n = DefaultChanBuffer + 100
	for i := range n {
		if err := q.Send(i); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	q.Close()

	got := 0
	for {
		v, err := q.Recv()
		if errors.Is(err, ErrDisconnected) {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		// a single consumer sees the overflow in send order
		if v != got {
			t.Fatalf("recv = %d; want %d", v, got)
		}
		got++
	}
	if got != n {
		t.Fatalf("received %d after close; want %d", got, n)
	}
}
