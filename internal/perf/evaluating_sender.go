package perf

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/wire"
)

// EvaluatingSender decorates a Sender, routing fixed, value-returning
// Runtime.evaluate calls through the shared Batcher so that many callers
// polling short-lived page state concurrently (navigation's SPA probe and
// URL/title conditions, wait's document-ready and URL conditions) fuse into
// one round trip instead of one each. Every other command - callFunctionOn,
// DOM queries, object-returning evaluates - passes straight through to the
// wrapped Sender untouched.
type EvaluatingSender struct {
	sender  Sender
	batcher *Batcher
}

// NewEvaluatingSender builds an EvaluatingSender over sender, fusing through
// batcher.
func NewEvaluatingSender(sender Sender, batcher *Batcher) *EvaluatingSender {
	return &EvaluatingSender{sender: sender, batcher: batcher}
}

// Send implements Sender. Only Runtime.evaluate calls requesting
// returnByValue with no objectId scope are eligible for batching: those are
// exactly the fixed global-state reads (location.href, document.title,
// document.readyState, SPA-framework probes) that never need the caller's
// own object handle back.
func (s *EvaluatingSender) Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error) {
	if method == wire.MethodRuntimeEvaluate {
		if expression, ok := plainValueExpression(params); ok {
			value, err := s.batcher.Evaluate(ctx, expression)
			if err != nil {
				return session.CommandResult{}, err
			}
			return session.CommandResult{Result: wrapEvaluateValue(value)}, nil
		}
	}
	return s.sender.Send(ctx, method, params, timeout)
}

type evaluateProbe struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
}

// plainValueExpression reports whether params describes a fixed,
// value-returning Runtime.evaluate call eligible for fusion: every caller
// that wants an object handle back (returnByValue: false) is left alone.
func plainValueExpression(params interface{}) (string, bool) {
	if params == nil {
		return "", false
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", false
	}
	var p evaluateProbe
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", false
	}
	if p.Expression == "" || !p.ReturnByValue {
		return "", false
	}
	return p.Expression, true
}

// wrapEvaluateValue re-shapes a fused result back into the
// {"result":{"value":...}} envelope every caller's own decode struct
// expects, as if it had come back from its own unbatched Runtime.evaluate.
func wrapEvaluateValue(value json.RawMessage) json.RawMessage {
	var wrapper struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
	}
	wrapper.Result.Value = value
	b, err := json.Marshal(wrapper)
	if err != nil {
		return json.RawMessage(`{"result":{}}`)
	}
	return b
}
