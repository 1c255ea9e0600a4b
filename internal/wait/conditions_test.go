package wait

import (
	"context"
	"encoding/json"
	"errors"
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

func evaluateResult(value interface{}) json.RawMessage {
	v, _ := json.Marshal(value)
	wrapped, _ := json.Marshal(map[string]interface{}{"result": map[string]interface{}{"type": "object", "value": json.RawMessage(v)}})
	return wrapped
}

func TestURLContainsMatches(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		if method != wire.MethodRuntimeEvaluate {
			t.Fatalf("unexpected method %s", method)
		}
		return evaluateResult("https://example.test/checkout"), nil
	}}
	cond := URLContains(sender, "checkout")
	ok, err := cond.Evaluate(context.Background())
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestElementVisibleResolveError(t *testing.T) {
	resolve := func(ctx context.Context) (string, error) { return "", errors.New("not found") }
	cond := ElementVisible(&fakeSender{}, resolve)
	ok, err := cond.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("resolve error should not propagate as evaluate error, got %v", err)
	}
	if ok {
		t.Fatal("expected false when element cannot be resolved")
	}
}

func TestElementClickableChecksOcclusion(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		return evaluateResult(true), nil
	}}
	resolve := func(ctx context.Context) (string, error) { return "obj1", nil }
	cond := ElementClickable(sender, resolve)
	ok, err := cond.Evaluate(context.Background())
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
}

func TestNetworkIdleReflectsBusState(t *testing.T) {
	bus := eventbus.New(100, nil)
	cond := NetworkIdle(bus)
	ok, _ := cond.Evaluate(context.Background())
	if !ok {
		t.Fatal("expected idle with no history")
	}

	bus.Emit(eventbus.Event{Kind: eventbus.Kind(wire.EventNetworkRequestWillBeSent),
		Payload: json.RawMessage(`{"requestId":"r1"}`)})
	ok, _ = cond.Evaluate(context.Background())
	if ok {
		t.Fatal("expected not idle with a pending request")
	}

	bus.Emit(eventbus.Event{Kind: eventbus.Kind(wire.EventNetworkLoadingFinished),
		Payload: json.RawMessage(`{"requestId":"r1"}`)})
	ok, _ = cond.Evaluate(context.Background())
	if !ok {
		t.Fatal("expected idle again once the request finished")
	}
}

func TestLayoutStableRequiresTwoMatchingSamples(t *testing.T) {
	rects := []map[string]float64{
		{"x": 0, "y": 0, "width": 100, "height": 50},
		{"x": 0, "y": 0, "width": 100, "height": 50},
	}
	call := 0
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		cfop := params.(wire.CallFunctionOnParams)
		if cfop.FunctionDeclaration == animationsProbeBody {
			return evaluateResult(0), nil
		}
		r := rects[call]
		if call < len(rects)-1 {
			call++
		}
		return evaluateResult(r), nil
	}}
	resolve := func(ctx context.Context) (string, error) { return "obj1", nil }
	cond := LayoutStable(sender, resolve)

	ok, err := cond.Evaluate(context.Background())
	if err != nil || ok {
		t.Fatalf("first sample should never report stable: ok=%v err=%v", ok, err)
	}
	ok, err = cond.Evaluate(context.Background())
	if err != nil || !ok {
		t.Fatalf("second matching sample should report stable: ok=%v err=%v", ok, err)
	}
}
