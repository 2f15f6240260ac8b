package drudge_test

import (
	"crypto/sha256"
	"os"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/azargarov/drudge"
)

type workload struct {
	name string
	fn   drudge.JobFunc[int]
}

var shaData = []byte("some deterministic payloadsome deterministic payloadsome deterministic payloadsome deterministic payload")

var (
	emptyWork = func(int) error {
		return nil
	}

	cpuWork = func(int) error {
		x := 0
		for i := range 1000 {
			x += i * i
		}
		_ = x
		return nil
	}

	ioWork = func(int) error {
		time.Sleep(5 * time.Microsecond)
		return nil
	}

	shaWork = func(int) error {
		_ = sha256.Sum256(shaData)
		return nil
	}
)

var workloads = []workload{
	{"empty ", emptyWork},
	{"sha256", shaWork},
	{"cpu   ", cpuWork},
	{"io    ", ioWork},
}

func newTestOptions(workers int) drudge.Options {
	return drudge.Options{
		Workers: workers,
	}
}

func newTestPool[T any](t *testing.T, workers int) *drudge.Pool[T] {
	t.Helper()

	p, err := drudge.New[T](newTestOptions(workers))
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return p
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	t.Fatal("condition not satisfied before timeout")
}

func waitUntilB(b *testing.B, timeout time.Duration, cond func() bool) {
	b.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	b.Fatal("condition not satisfied before timeout")
}

func getenvInt(name string, def int) int {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
