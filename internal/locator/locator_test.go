package locator

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
	calls  []string
}

func (f *fakeSender) Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error) {
	f.calls = append(f.calls, method)
	raw, err := f.onSend(method, params)
	return session.CommandResult{Result: raw}, err
}

func objectResult(objectID string) json.RawMessage {
	out, _ := json.Marshal(map[string]interface{}{
		"result": map[string]interface{}{"type": "object", "objectId": objectID},
	})
	return out
}

func TestBuildFromHintsPrefersSemanticOverStructural(t *testing.T) {
	l, ok := BuildFromHints(map[string]string{"id": "submit", "role": "button"})
	if !ok {
		t.Fatal("expected a locator")
	}
	if l.Steps[0].Value != `[role="button"]` {
		t.Fatalf("expected role selector to win, got %q", l.Steps[0].Value)
	}
}

func TestBuildFromHintsFallsBackToXPath(t *testing.T) {
	l, ok := BuildFromHints(map[string]string{"xpath": "//div"})
	if !ok || l.Steps[0].Strategy != StrategyXPath {
		t.Fatalf("expected xpath locator, got %+v ok=%v", l, ok)
	}
}

func TestBuildFromHintsNoCandidates(t *testing.T) {
	if _, ok := BuildFromHints(map[string]string{}); ok {
		t.Fatal("expected no locator from empty hints")
	}
}

func TestResolveCSSWalksQuerySelectorThenResolveNode(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		switch method {
		case wire.MethodDOMGetDocument:
			return json.RawMessage(`{"root":{"nodeId":1}}`), nil
		case wire.MethodDOMQuerySelector:
			return json.RawMessage(`{"nodeId":42}`), nil
		case wire.MethodDOMResolveNode:
			return json.RawMessage(`{"object":{"objectId":"obj-42"}}`), nil
		}
		t.Fatalf("unexpected method %s", method)
		return nil, nil
	}}
	eng := New(sender, eventbus.New(10, nil), nil, time.Minute)
	objectID, err := eng.Resolve(context.Background(), CSS("#submit"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if objectID != "obj-42" {
		t.Fatalf("got %q", objectID)
	}
}

func TestResolveCSSNoMatchReturnsError(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		switch method {
		case wire.MethodDOMGetDocument:
			return json.RawMessage(`{"root":{"nodeId":1}}`), nil
		case wire.MethodDOMQuerySelector:
			return json.RawMessage(`{"nodeId":0}`), nil
		}
		return nil, nil
	}}
	eng := New(sender, eventbus.New(10, nil), nil, time.Minute)
	if _, err := eng.Resolve(context.Background(), CSS(".missing")); err == nil {
		t.Fatal("expected an error when no element matches")
	}
}

func TestResolveXPathUsesDocumentElementWhenUnscoped(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		switch method {
		case wire.MethodRuntimeEvaluate:
			return objectResult("doc-root"), nil
		case wire.MethodRuntimeCallFunctionOn:
			cfop := params.(wire.CallFunctionOnParams)
			if cfop.ObjectID != "doc-root" {
				t.Fatalf("expected call scoped to doc-root, got %q", cfop.ObjectID)
			}
			return objectResult("xpath-hit"), nil
		}
		return nil, nil
	}}
	eng := New(sender, eventbus.New(10, nil), nil, time.Minute)
	objectID, err := eng.Resolve(context.Background(), XPath("//button"))
	if err != nil || objectID != "xpath-hit" {
		t.Fatalf("objectID=%q err=%v", objectID, err)
	}
}

func TestResolveChainScopesSecondStepToFirst(t *testing.T) {
	var sawSelectorScope int64
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		switch method {
		case wire.MethodDOMGetDocument:
			return json.RawMessage(`{"root":{"nodeId":1}}`), nil
		case wire.MethodDOMQuerySelector:
			p := params.(map[string]interface{})
			if p["nodeId"].(int64) == 1 {
				return json.RawMessage(`{"nodeId":10}`), nil
			}
			sawSelectorScope = p["nodeId"].(int64)
			return json.RawMessage(`{"nodeId":11}`), nil
		case wire.MethodDOMResolveNode:
			return json.RawMessage(`{"object":{"objectId":"obj"}}`), nil
		}
		return nil, nil
	}}
	eng := New(sender, eventbus.New(10, nil), nil, time.Minute)
	l := CSS(".panel").Scope(CSS(".button"))
	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sawSelectorScope != 10 {
		t.Fatalf("expected second step scoped to first step's node 10, got %d", sawSelectorScope)
	}
}

func TestResolveCachesLeafAcrossCalls(t *testing.T) {
	calls := 0
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		calls++
		switch method {
		case wire.MethodDOMGetDocument:
			return json.RawMessage(`{"root":{"nodeId":1}}`), nil
		case wire.MethodDOMQuerySelector:
			return json.RawMessage(`{"nodeId":42}`), nil
		case wire.MethodDOMResolveNode:
			return json.RawMessage(`{"object":{"objectId":"obj-42"}}`), nil
		}
		return nil, nil
	}}
	eng := New(sender, eventbus.New(10, nil), nil, time.Minute)
	l := CSS("#submit")
	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	firstCalls := calls
	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	if calls != firstCalls {
		t.Fatalf("expected cache hit to avoid protocol calls, first=%d second=%d", firstCalls, calls)
	}
}

func TestMainFrameNavigationClearsCache(t *testing.T) {
	calls := 0
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		calls++
		switch method {
		case wire.MethodDOMGetDocument:
			return json.RawMessage(`{"root":{"nodeId":1}}`), nil
		case wire.MethodDOMQuerySelector:
			return json.RawMessage(`{"nodeId":42}`), nil
		case wire.MethodDOMResolveNode:
			return json.RawMessage(`{"object":{"objectId":"obj-42"}}`), nil
		}
		return nil, nil
	}}
	bus := eventbus.New(10, nil)
	eng := New(sender, bus, nil, time.Minute)
	l := CSS("#submit")
	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	before := calls

	bus.Emit(eventbus.Event{Kind: eventbus.Kind(wire.EventPageFrameNavigated),
		Payload: json.RawMessage(`{"frame":{"id":"main","parentId":""}}`)})

	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	if calls == before {
		t.Fatal("expected main-frame navigation to force cache miss")
	}
}

func TestSubFrameNavigationDoesNotClearCache(t *testing.T) {
	calls := 0
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		calls++
		switch method {
		case wire.MethodDOMGetDocument:
			return json.RawMessage(`{"root":{"nodeId":1}}`), nil
		case wire.MethodDOMQuerySelector:
			return json.RawMessage(`{"nodeId":42}`), nil
		case wire.MethodDOMResolveNode:
			return json.RawMessage(`{"object":{"objectId":"obj-42"}}`), nil
		}
		return nil, nil
	}}
	bus := eventbus.New(10, nil)
	eng := New(sender, bus, nil, time.Minute)
	l := CSS("#submit")
	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	before := calls

	bus.Emit(eventbus.Event{Kind: eventbus.Kind(wire.EventPageFrameNavigated),
		Payload: json.RawMessage(`{"frame":{"id":"child","parentId":"main"}}`)})

	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	if calls != before {
		t.Fatal("sub-frame navigation should not invalidate the cache")
	}
}

func TestSwitchToFrameScopesSubsequentResolve(t *testing.T) {
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		switch method {
		case wire.MethodDOMGetDocument:
			return json.RawMessage(`{"root":{"nodeId":1}}`), nil
		case wire.MethodDOMQuerySelector:
			return json.RawMessage(`{"nodeId":5}`), nil
		case wire.MethodDOMResolveNode:
			return json.RawMessage(`{"object":{"objectId":"iframe-obj"}}`), nil
		case wire.MethodRuntimeCallFunctionOn:
			cfop := params.(wire.CallFunctionOnParams)
			if cfop.FunctionDeclaration == contentDocumentBody {
				if cfop.ObjectID != "iframe-obj" {
					t.Fatalf("expected contentDocument call on iframe-obj, got %q", cfop.ObjectID)
				}
				return objectResult("inner-doc"), nil
			}
		}
		return nil, nil
	}}
	eng := New(sender, eventbus.New(10, nil), nil, time.Minute)
	if err := eng.SwitchToFrame(context.Background(), CSS("iframe#payment")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fs := eng.currentFrame()
	if fs.objectID != "inner-doc" {
		t.Fatalf("expected frame scope objectID inner-doc, got %q", fs.objectID)
	}
	eng.SwitchToParentFrame()
	if fs := eng.currentFrame(); fs.objectID != "" {
		t.Fatalf("expected empty scope after popping to main frame, got %+v", fs)
	}
}

func TestCacheTTLExpires(t *testing.T) {
	calls := 0
	sender := &fakeSender{onSend: func(method string, params interface{}) (json.RawMessage, error) {
		calls++
		switch method {
		case wire.MethodDOMGetDocument:
			return json.RawMessage(`{"root":{"nodeId":1}}`), nil
		case wire.MethodDOMQuerySelector:
			return json.RawMessage(`{"nodeId":42}`), nil
		case wire.MethodDOMResolveNode:
			return json.RawMessage(`{"object":{"objectId":"obj-42"}}`), nil
		}
		return nil, nil
	}}
	eng := New(sender, eventbus.New(10, nil), nil, time.Millisecond)
	l := CSS("#submit")
	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	before := calls
	time.Sleep(5 * time.Millisecond)
	if _, err := eng.Resolve(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	if calls == before {
		t.Fatal("expected TTL expiry to force a fresh resolve")
	}
}
