package navigation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dev-console/browserctl/internal/wire"
)

const evalTimeout = 5 * time.Second

type runtimeResult struct {
	Result struct {
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails,omitempty"`
}

func evalExpression(ctx context.Context, sender Sender, expression string) (json.RawMessage, error) {
	res, err := sender.Send(ctx, wire.MethodRuntimeEvaluate, map[string]interface{}{
		"expression": expression, "returnByValue": true, "awaitPromise": true,
	}, evalTimeout)
	if err != nil {
		return nil, err
	}
	var rr runtimeResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return nil, fmt.Errorf("navigation: decode evaluate result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return nil, fmt.Errorf("navigation: page evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	return rr.Result.Value, nil
}

// spaProbeExpression checks for common SPA-framework globals and DOM
// markers. It is a fixed expression: the page being probed supplies no
// input to it.
const spaProbeExpression = `(function(){
	if (window.__NEXT_DATA__ || window.__NUXT__ || window.angular || window.Vue || window.React) return true;
	if (document.querySelector('[data-reactroot], [ng-app], [ng-version], [data-vue-app], #__next, #__nuxt')) return true;
	if (window.history && typeof window.history.pushState === 'function' && window.history.length > 1) return true;
	return false;
})()`

func evalSPAProbe(ctx context.Context, sender Sender) (bool, error) {
	raw, err := evalExpression(ctx, sender, spaProbeExpression)
	if err != nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("navigation: expected bool result: %w", err)
	}
	return v, nil
}

// documentElementObjectID resolves a remote object id for document.documentElement,
// so loading-indicator selectors can be passed as structured arguments to a
// fixed function body rather than spliced into an expression string
// (spec.md §9 Design Note).
func documentElementObjectID(ctx context.Context, sender Sender) (string, error) {
	res, err := sender.Send(ctx, wire.MethodRuntimeEvaluate, map[string]interface{}{
		"expression": "document.documentElement", "returnByValue": false,
	}, evalTimeout)
	if err != nil {
		return "", err
	}
	var rr struct {
		Result struct {
			ObjectID string `json:"objectId"`
		} `json:"result"`
	}
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return "", fmt.Errorf("navigation: decode documentElement handle: %w", err)
	}
	if rr.Result.ObjectID == "" {
		return "", fmt.Errorf("navigation: documentElement returned no object id")
	}
	return rr.Result.ObjectID, nil
}

const loadingIndicatorsGoneBody = `function(selectors){
	for (const s of selectors) {
		if (this.ownerDocument.querySelector(s)) return false;
	}
	return true;
}`

func loadingIndicatorsGone(ctx context.Context, sender Sender, selectors []string) (bool, error) {
	objectID, err := documentElementObjectID(ctx, sender)
	if err != nil {
		return false, err
	}
	params := wire.NewCallFunctionOn(loadingIndicatorsGoneBody, selectors).OnObject(objectID)
	res, err := sender.Send(ctx, wire.MethodRuntimeCallFunctionOn, params, evalTimeout)
	if err != nil {
		return false, err
	}
	var rr runtimeResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return false, fmt.Errorf("navigation: decode loading-indicator result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return false, fmt.Errorf("navigation: loading-indicator evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	var gone bool
	if err := json.Unmarshal(rr.Result.Value, &gone); err != nil {
		return false, fmt.Errorf("navigation: expected bool result: %w", err)
	}
	return gone, nil
}

type loadingIndicatorsGoneCondition struct {
	sender    Sender
	selectors []string
}

func (c loadingIndicatorsGoneCondition) Evaluate(ctx context.Context) (bool, error) {
	return loadingIndicatorsGone(ctx, c.sender, c.selectors)
}
