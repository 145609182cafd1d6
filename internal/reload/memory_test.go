package reload

import (
	"context"
	"testing"
	"time"
)

func recvSignal(t *testing.T, sub *Subscription) Signal {
	t.Helper()
	select {
	case sig, ok := <-sub.Signals():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return sig
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for signal")
		return Signal{}
	}
}

func TestMemoryBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub1, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub1.Close()
	sub2, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub2.Close()

	if err := bus.Publish(ctx, "slack"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if sig := recvSignal(t, sub1); sig.Scope != "slack" {
		t.Errorf("sub1 scope = %q, want slack", sig.Scope)
	}
	if sig := recvSignal(t, sub2); sig.Scope != "slack" {
		t.Errorf("sub2 scope = %q, want slack", sig.Scope)
	}
}

func TestMemoryBusScopeFiltering(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx, "slack")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := bus.Publish(ctx, "github", "slack"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if sig := recvSignal(t, sub); sig.Scope != "slack" {
		t.Errorf("scope = %q, want slack", sig.Scope)
	}
	select {
	case sig := <-sub.Signals():
		t.Errorf("unexpected extra signal %v", sig)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusMultipleScopesFanOut(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := bus.Publish(ctx, "slack", "github"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	got := []string{recvSignal(t, sub).Scope, recvSignal(t, sub).Scope}
	if got[0] != "slack" || got[1] != "github" {
		t.Errorf("scopes = %v, want [slack github]", got)
	}
}

func TestMemoryBusCloseStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()
	ctx := context.Background()

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Close()
	sub.Close() // idempotent

	if _, ok := <-sub.Signals(); ok {
		t.Error("channel open after Close")
	}
	// Publishing after close must not panic.
	if err := bus.Publish(ctx, "slack"); err != nil {
		t.Fatalf("Publish after close: %v", err)
	}
}

func TestMemoryBusContextCancelCloses(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := bus.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	select {
	case _, ok := <-sub.Signals():
		if ok {
			t.Error("received signal instead of close")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
}
