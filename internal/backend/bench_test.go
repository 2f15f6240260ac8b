package backend

import (
	"runtime"
	"testing"
)

func BenchmarkQueue_PushPop(b *testing.B) {
	for _, f := range factories {
		b.Run(f.name, func(b *testing.B) {
			q := f.open(Options{})
			defer q.Close()

			b.ReportAllocs()
			for i := range b.N {
				if err := q.Send(i); err != nil {
					b.Fatalf("send failed: %v", err)
				}
				if _, err := q.Recv(); err != nil {
					b.Fatalf("recv failed: %v", err)
				}
			}
		})
	}
}

func BenchmarkQueue_MPMC(b *testing.B) {
	for _, f := range factories {
		b.Run(f.name, func(b *testing.B) {
			q := f.open(Options{})
			consumers := runtime.GOMAXPROCS(0)

			done := make(chan struct{})
			for range consumers {
				go func() {
					for {
						if _, err := q.Recv(); err != nil {
							done <- struct{}{}
							return
						}
					}
				}()
			}

			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					for q.Send(1) != nil {
						runtime.Gosched()
					}
				}
			})
			q.Close()
			for range consumers {
				<-done
			}
		})
	}
}

func BenchmarkSegmentedQueue_PushOnly(b *testing.B) {
	q := NewSegmented[int](Options{})

	b.ReportAllocs()
	for i := range b.N {
		if err := q.Send(i); err != nil {
			b.Fatalf("push failed: %v", err)
		}
	}
}
