package bus

import (
	"context"
	"testing"
	"time"
)

func TestEventFanout(t *testing.T) {
	b := New()
	t.Cleanup(b.Close)

	ctx := context.Background()
	eventsA, unsubA := b.Subscribe(ctx, 1)
	defer unsubA()
	eventsB, unsubB := b.Subscribe(ctx, 1)
	defer unsubB()

	if ok := b.Publish(ctx, Event{Type: EventModuleFailed, Module: "fwd"}); !ok {
		t.Fatal("expected publish to succeed")
	}

	for name, events := range map[string]<-chan Event{"A": eventsA, "B": eventsB} {
		select {
		case got := <-events:
			if got.Type != EventModuleFailed || got.Module != "fwd" {
				t.Fatalf("subscriber %s got %+v", name, got)
			}
			if got.At.IsZero() {
				t.Fatalf("subscriber %s got an unstamped event", name)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("subscriber %s did not receive event", name)
		}
	}
}

func TestSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := New()
	t.Cleanup(b.Close)

	ctx := context.Background()
	events, unsubscribe := b.Subscribe(ctx, 1)
	defer unsubscribe()

	if ok := b.Publish(ctx, Event{Type: EventDispatched}); !ok {
		t.Fatal("expected first publish to succeed")
	}

	start := time.Now()
	if ok := b.Publish(ctx, Event{Type: EventUnhandled}); !ok {
		t.Fatal("expected second publish to succeed")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("publish blocked on slow subscriber")
	}

	got := <-events
	if got.Type != EventDispatched {
		t.Fatalf("event type = %q, want %q", got.Type, EventDispatched)
	}
}

func TestCloseStopsBus(t *testing.T) {
	b := New()
	events, _ := b.Subscribe(context.Background(), 1)
	b.Close()
	b.Close()

	if _, ok := <-events; ok {
		t.Fatal("expected subscriber channel to be closed")
	}
	if ok := b.Publish(context.Background(), Event{Type: EventDispatched}); ok {
		t.Fatal("expected publish to fail after close")
	}

	late, _ := b.Subscribe(context.Background(), 1)
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after close to be closed")
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	b := New()
	t.Cleanup(b.Close)

	ctx, cancel := context.WithCancel(context.Background())
	events, _ := b.Subscribe(ctx, 1)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("subscription did not end with its context")
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var b *Bus
	if b.Publish(context.Background(), Event{Type: EventDispatched}) {
		t.Fatal("expected nil bus publish to report false")
	}
}
