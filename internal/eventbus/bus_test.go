package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestEmitOrderMatchesSubscription(t *testing.T) {
	b := New(10, nil)
	var mu sync.Mutex
	var order []int

	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe("k", HandlerFunc(func(Event) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	b.Emit(Event{Kind: "k"})

	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("handler order = %v, want ascending", order)
		}
	}
}

func TestHandlerPanicDoesNotAbortEmission(t *testing.T) {
	b := New(10, nil)
	called := false
	b.Subscribe("k", HandlerFunc(func(Event) { panic("boom") }))
	b.Subscribe("k", HandlerFunc(func(Event) { called = true }))
	b.Emit(Event{Kind: "k"})
	if !called {
		t.Fatal("second handler must still run after first panics")
	}
}

func TestWaiterRegisteredBeforeEmissionSeesEvent(t *testing.T) {
	b := New(10, nil)
	resultCh := make(chan Event, 1)
	go func() {
		e, ok := b.Wait(context.Background(), "k", time.Second, nil)
		if ok {
			resultCh <- e
		}
	}()
	time.Sleep(20 * time.Millisecond)
	b.Emit(Event{Kind: "k", Payload: json.RawMessage(`{"a":1}`)})

	select {
	case e := <-resultCh:
		if e.Kind != "k" {
			t.Fatalf("got kind %q", e.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never observed the event")
	}
}

func TestWaitTimesOut(t *testing.T) {
	b := New(10, nil)
	_, ok := b.Wait(context.Background(), "k", 10*time.Millisecond, nil)
	if ok {
		t.Fatal("expected timeout")
	}
}

func TestSubscribeOnceFiresOnce(t *testing.T) {
	b := New(10, nil)
	count := 0
	b.SubscribeOnce("k", HandlerFunc(func(Event) { count++ }))
	b.Emit(Event{Kind: "k"})
	b.Emit(Event{Kind: "k"})
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(10, nil)
	count := 0
	unsub := b.Subscribe("k", HandlerFunc(func(Event) { count++ }))
	b.Emit(Event{Kind: "k"})
	unsub()
	b.Emit(Event{Kind: "k"})
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestHistoryBounded(t *testing.T) {
	b := New(3, nil)
	for i := 0; i < 10; i++ {
		b.Emit(Event{Kind: "k"})
	}
	if len(b.History()) != 3 {
		t.Fatalf("history length = %d, want 3", len(b.History()))
	}
}

func TestPendingRequestsDerivation(t *testing.T) {
	b := New(100, nil)
	b.Emit(Event{Kind: "Network.requestWillBeSent", Payload: json.RawMessage(`{"requestId":"1"}`)})
	b.Emit(Event{Kind: "Network.requestWillBeSent", Payload: json.RawMessage(`{"requestId":"2"}`)})
	b.Emit(Event{Kind: "Network.loadingFinished", Payload: json.RawMessage(`{"requestId":"1"}`)})

	pending := b.PendingRequests()
	if !pending["2"] || pending["1"] {
		t.Fatalf("pending = %v, want only 2", pending)
	}
}
