package target

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/wire"
)

type fakeSender struct {
	onSend func(method string, params interface{}) (json.RawMessage, error)
}

func (f *fakeSender) Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error) {
	raw, err := f.onSend(method, params)
	return session.CommandResult{Result: raw}, err
}

func targetCreatedEvent(id, kind, url string) eventbus.Event {
	payload, _ := json.Marshal(map[string]interface{}{
		"targetInfo": map[string]interface{}{
			"targetId": id,
			"type":     kind,
			"url":      url,
			"title":    "",
		},
	})
	return eventbus.Event{Kind: eventbus.Kind(wire.EventTargetCreated), Payload: payload}
}

func TestFirstPageTargetBecomesMain(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{"sessionId":"sess-1"}`), nil
	}}
	bus := eventbus.New(10, nil)
	m := New(sender, bus, nil)

	bus.Emit(targetCreatedEvent("t1", "page", "https://example.com"))
	bus.Emit(targetCreatedEvent("t2", "page", "https://example.com/other"))

	main, ok := m.Main()
	if !ok || main.ID != "t1" {
		t.Fatalf("expected t1 to be main, got %+v ok=%v", main, ok)
	}
}

func TestNonPageTargetNeverBecomesMain(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	}}
	bus := eventbus.New(10, nil)
	m := New(sender, bus, nil)

	bus.Emit(targetCreatedEvent("w1", "service_worker", ""))
	if _, ok := m.Main(); ok {
		t.Fatal("expected no main target from a non-page target")
	}
}

func TestMainPromotedOnDestroy(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{"sessionId":"sess-1"}`), nil
	}}
	bus := eventbus.New(10, nil)
	m := New(sender, bus, nil)

	bus.Emit(targetCreatedEvent("t1", "page", "https://example.com"))
	bus.Emit(targetCreatedEvent("t2", "page", "https://example.com/other"))

	destroyed, _ := json.Marshal(map[string]interface{}{"targetId": "t1"})
	bus.Emit(eventbus.Event{Kind: eventbus.Kind(wire.EventTargetDestroyed), Payload: destroyed})

	if _, ok := m.ByID("t1"); ok {
		t.Fatal("expected t1 removed from inventory")
	}
	main, ok := m.Main()
	if !ok || main.ID != "t2" {
		t.Fatalf("expected t2 promoted to main, got %+v ok=%v", main, ok)
	}
}

func TestInfoChangedUpdatesURLAndTitle(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{"sessionId":"sess-1"}`), nil
	}}
	bus := eventbus.New(10, nil)
	m := New(sender, bus, nil)
	bus.Emit(targetCreatedEvent("t1", "page", "https://example.com"))

	changed, _ := json.Marshal(map[string]interface{}{
		"targetInfo": map[string]interface{}{
			"targetId": "t1",
			"type":     "page",
			"url":      "https://example.com/next",
			"title":    "Next Page",
		},
	})
	bus.Emit(eventbus.Event{Kind: eventbus.Kind(wire.EventTargetInfoChanged), Payload: changed})

	got, ok := m.ByID("t1")
	if !ok || got.URL != "https://example.com/next" || got.Title != "Next Page" {
		t.Fatalf("unexpected target after info-changed: %+v ok=%v", got, ok)
	}
}

func TestCrashedMarksUnattachedButDoesNotRemove(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{"sessionId":"sess-1"}`), nil
	}}
	bus := eventbus.New(10, nil)
	m := New(sender, bus, nil)
	bus.Emit(targetCreatedEvent("t1", "page", "https://example.com"))

	crashed, _ := json.Marshal(map[string]interface{}{"targetId": "t1"})
	bus.Emit(eventbus.Event{Kind: eventbus.Kind(wire.EventTargetCrashed), Payload: crashed})

	got, ok := m.ByID("t1")
	if !ok {
		t.Fatal("expected t1 to still be present after crash")
	}
	if got.Attached {
		t.Fatal("expected t1 marked unattached after crash")
	}
}

func TestByURLContainsAndByKind(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{"sessionId":"sess-1"}`), nil
	}}
	bus := eventbus.New(10, nil)
	m := New(sender, bus, nil)
	bus.Emit(targetCreatedEvent("t1", "page", "https://example.com/groups/42"))
	bus.Emit(targetCreatedEvent("w1", "service_worker", "https://example.com/sw.js"))

	matches := m.ByURLContains("groups/42")
	if len(matches) != 1 || matches[0].ID != "t1" {
		t.Fatalf("expected single URL match on t1, got %+v", matches)
	}

	workers := m.ByKind(KindServiceWorker)
	if len(workers) != 1 || workers[0].ID != "w1" {
		t.Fatalf("expected single worker match, got %+v", workers)
	}
}

func TestWaitForPopupReturnsFirstNewPageTarget(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{"sessionId":"sess-1"}`), nil
	}}
	bus := eventbus.New(10, nil)
	m := New(sender, bus, nil)
	bus.Emit(targetCreatedEvent("t1", "page", "https://example.com"))

	resultCh := make(chan Target, 1)
	go func() {
		popup, ok := m.WaitForPopup(context.Background(), time.Second)
		if ok {
			resultCh <- popup
		} else {
			resultCh <- Target{}
		}
	}()

	time.Sleep(20 * time.Millisecond)
	bus.Emit(targetCreatedEvent("t2", "page", "https://example.com/popup"))

	select {
	case popup := <-resultCh:
		if popup.ID != "t2" {
			t.Fatalf("expected popup t2, got %+v", popup)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for popup")
	}
}

func TestWaitForPopupTimesOutWithoutNewTarget(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return json.RawMessage(`{"sessionId":"sess-1"}`), nil
	}}
	bus := eventbus.New(10, nil)
	m := New(sender, bus, nil)

	_, ok := m.WaitForPopup(context.Background(), 30*time.Millisecond)
	if ok {
		t.Fatal("expected timeout when no popup target is created")
	}
}

func TestCloseTargetSendsCloseCommand(t *testing.T) {
	var sawMethod string
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		sawMethod = method
		return json.RawMessage(`{"success":true}`), nil
	}}
	m := New(sender, eventbus.New(10, nil), nil)
	if err := m.CloseTarget(context.Background(), "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawMethod != wire.MethodTargetCloseTarget {
		t.Fatalf("expected %s, got %s", wire.MethodTargetCloseTarget, sawMethod)
	}
}
