package randomgate

import (
	"context"
	"testing"
	"time"
)

func TestAwaitReturnsImmediatelyWhenAlreadyPublished(t *testing.T) {
	g := NewGate(0)
	g.Publish("n1", RandomBytes("abc"))

	got, err := g.Await(context.Background(), "n1")
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("expected 'abc', got %q", got)
	}
}

func TestAwaitUnblocksOnPublish(t *testing.T) {
	g := NewGate(0)
	g.ImportTimeout = time.Second

	done := make(chan struct{})
	var got RandomBytes
	var gotErr error
	go func() {
		got, gotErr = g.Await(context.Background(), "n2")
		close(done)
	}()

	// give the waiter time to register before publishing.
	time.Sleep(20 * time.Millisecond)
	g.Publish("n2", RandomBytes("xyz"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Await did not unblock after Publish")
	}
	if gotErr != nil {
		t.Fatalf("Await failed: %v", gotErr)
	}
	if string(got) != "xyz" {
		t.Fatalf("expected 'xyz', got %q", got)
	}
}

func TestAwaitTimesOut(t *testing.T) {
	g := NewGate(0)
	g.ImportTimeout = 20 * time.Millisecond

	_, err := g.Await(context.Background(), "never-published")
	if err != ErrRandomnessTimeout {
		t.Fatalf("expected ErrRandomnessTimeout, got %v", err)
	}
}

func TestAwaitRespectsContextCancellation(t *testing.T) {
	g := NewGate(0)
	g.ImportTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := g.Await(ctx, "cancelled-nonce")
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRequestFailsWhenChannelFull(t *testing.T) {
	g := NewGate(1)
	if err := g.Request("a"); err != nil {
		t.Fatalf("first Request should succeed, got %v", err)
	}
	if err := g.Request("b"); err != ErrTransmit {
		t.Fatalf("expected ErrTransmit once the buffer is full, got %v", err)
	}
}

func TestEvictClearsReadyAndWaiters(t *testing.T) {
	g := NewGate(0)
	g.Publish("evictable", RandomBytes("data"))
	g.Evict("evictable")

	g.ImportTimeout = 20 * time.Millisecond
	_, err := g.Await(context.Background(), "evictable")
	if err != ErrRandomnessTimeout {
		t.Fatalf("expected eviction to clear published randomness, got %v", err)
	}
}
