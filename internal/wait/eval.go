package wait

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dev-console/browserctl/internal/wire"
)

const evalTimeout = 5 * time.Second

// evaluateParams is Runtime.evaluate's params shape for the fixed,
// non-interpolated expressions this package reads (location.href,
// document.readyState, document.title).
// No caller-supplied value is ever spliced into expression itself.
type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
	AwaitPromise  bool   `json:"awaitPromise"`
}

type runtimeResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails,omitempty"`
}

func evalExpression(ctx context.Context, sender Sender, expression string) (json.RawMessage, error) {
	res, err := sender.Send(ctx, wire.MethodRuntimeEvaluate, evaluateParams{
		Expression: expression, ReturnByValue: true,
	}, evalTimeout)
	if err != nil {
		return nil, err
	}
	var rr runtimeResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return nil, fmt.Errorf("wait: decode evaluate result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return nil, fmt.Errorf("wait: page evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	return rr.Result.Value, nil
}

func evalString(ctx context.Context, sender Sender, expression string) (string, error) {
	raw, err := evalExpression(ctx, sender, expression)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("wait: expected string result: %w", err)
	}
	return s, nil
}

// evalBoolOnObject calls a fixed function body bound to objectID via
// Runtime.callFunctionOn, passing args positionally rather than
// interpolating them into the body (spec.md §9 Design Note).
func evalBoolOnObject(ctx context.Context, sender Sender, objectID string, body string, args ...interface{}) (bool, error) {
	params := wire.NewCallFunctionOn(body, args...).OnObject(objectID)
	res, err := sender.Send(ctx, wire.MethodRuntimeCallFunctionOn, params, evalTimeout)
	if err != nil {
		return false, err
	}
	var rr runtimeResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return false, fmt.Errorf("wait: decode callFunctionOn result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return false, fmt.Errorf("wait: element evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	var v bool
	if err := json.Unmarshal(rr.Result.Value, &v); err != nil {
		return false, fmt.Errorf("wait: expected bool result: %w", err)
	}
	return v, nil
}

// evalIntOnObject calls a fixed function body bound to objectID and
// expects a numeric result.
func evalIntOnObject(ctx context.Context, sender Sender, objectID string, body string) (int, error) {
	params := wire.NewCallFunctionOn(body).OnObject(objectID)
	res, err := sender.Send(ctx, wire.MethodRuntimeCallFunctionOn, params, evalTimeout)
	if err != nil {
		return 0, err
	}
	var rr runtimeResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return 0, fmt.Errorf("wait: decode callFunctionOn result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return 0, fmt.Errorf("wait: element evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	var n int
	if err := json.Unmarshal(rr.Result.Value, &n); err != nil {
		return 0, fmt.Errorf("wait: expected numeric result: %w", err)
	}
	return n, nil
}

// evalRectOnObject reads the bounding rect {x,y,width,height} of objectID.
func evalRectOnObject(ctx context.Context, sender Sender, objectID string) (Rect, error) {
	const body = `function(){ const r = this.getBoundingClientRect(); return {x:r.x,y:r.y,width:r.width,height:r.height}; }`
	params := wire.NewCallFunctionOn(body).OnObject(objectID)
	res, err := sender.Send(ctx, wire.MethodRuntimeCallFunctionOn, params, evalTimeout)
	if err != nil {
		return Rect{}, err
	}
	var rr runtimeResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return Rect{}, fmt.Errorf("wait: decode rect result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return Rect{}, fmt.Errorf("wait: rect evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	var rect Rect
	if err := json.Unmarshal(rr.Result.Value, &rect); err != nil {
		return Rect{}, fmt.Errorf("wait: expected rect result: %w", err)
	}
	return rect, nil
}
