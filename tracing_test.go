package drudge_test

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/azargarov/drudge"
)

func TestAttemptSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	p, err := drudge.New[int](drudge.Options{
		Workers: 1,
		Tracer:  tp.Tracer("drudge-test"),
	})
	if err != nil {
		t.Fatal(err)
	}

	_ = p.Submit(drudge.Job[int]{Fn: func(int) error { return nil }})
	_ = p.Submit(drudge.Job[int]{Fn: func(int) error { return errors.New("boom") }})
	p.Stop()

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d; want 2", len(spans))
	}

	var failed int
	for _, s := range spans {
		if s.Name() != "drudge.job" {
			t.Fatalf("span name = %q", s.Name())
		}
		if !hasAttr(s.Attributes(), "drudge.pool", p.ID()) {
			t.Fatalf("span missing pool id: %v", s.Attributes())
		}
		if s.Status().Code == codes.Error {
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("error spans = %d; want 1", failed)
	}
}

func hasAttr(attrs []attribute.KeyValue, key, value string) bool {
	for _, kv := range attrs {
		if string(kv.Key) == key && kv.Value.AsString() == value {
			return true
		}
	}
	return false
}
