package bus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestChannelSource_PublishAndClose(t *testing.T) {
	src := NewChannelSource(2)
	ctx := context.Background()

	if err := src.Publish(ctx, Transcript("  read decision  ")); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := src.Publish(ctx, End()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	_ = src.Close()
	_ = src.Close()

	first := <-src.Events()
	if first.Type != EventTranscript || first.Text != "read decision" {
		t.Fatalf("unexpected first event: %+v", first)
	}
	if first.RequestID == "" {
		t.Fatal("expected transcript to carry a request id")
	}
	if second := <-src.Events(); second.Type != EventEnd {
		t.Fatalf("expected end event, got %+v", second)
	}
	if _, ok := <-src.Events(); ok {
		t.Fatal("expected closed stream")
	}
	if err := src.Publish(ctx, End()); !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}
}

func TestChannelSource_PublishRespectsContext(t *testing.T) {
	src := NewChannelSource(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := src.Publish(ctx, Failure(errors.New("mic"))); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-123")
	if got := RequestIDFromContext(ctx); got != "req-123" {
		t.Fatalf("expected req-123, got %q", got)
	}
}
