package action

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

func callOnObject(ctx context.Context, sender Sender, objectID string, body string, args ...interface{}) (json.RawMessage, error) {
	params := wire.NewCallFunctionOn(body, args...).OnObject(objectID)
	res, err := sender.Send(ctx, wire.MethodRuntimeCallFunctionOn, params, evalTimeout)
	if err != nil {
		return nil, err
	}
	var rr runtimeResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return nil, fmt.Errorf("action: decode callFunctionOn result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return nil, fmt.Errorf("action: in-page evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	return rr.Result.Value, nil
}

type center struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const centerBody = `function(){
	const r = this.getBoundingClientRect();
	return {x: r.left + r.width/2, y: r.top + r.height/2};
}`

func elementCenter(ctx context.Context, sender Sender, objectID string) (center, error) {
	raw, err := callOnObject(ctx, sender, objectID, centerBody)
	if err != nil {
		return center{}, err
	}
	var c center
	if err := json.Unmarshal(raw, &c); err != nil {
		return center{}, fmt.Errorf("action: decode center: %w", err)
	}
	return c, nil
}

const isContentEditableBody = `function(){ return !!this.isContentEditable; }`

func isContentEditable(ctx context.Context, sender Sender, objectID string) (bool, error) {
	raw, err := callOnObject(ctx, sender, objectID, isContentEditableBody)
	if err != nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("action: decode isContentEditable: %w", err)
	}
	return v, nil
}

const focusBody = `function(){ this.focus(); }`

const plainInputSetBody = `function(text, clearFirst){
	const proto = this.tagName === 'TEXTAREA' ? window.HTMLTextAreaElement.prototype : window.HTMLInputElement.prototype;
	const setter = Object.getOwnPropertyDescriptor(proto, 'value') && Object.getOwnPropertyDescriptor(proto, 'value').set;
	const next = clearFirst ? text : (this.value || '') + text;
	if (setter) { setter.call(this, next); } else { this.value = next; }
	this.dispatchEvent(new Event('input', {bubbles: true}));
	this.dispatchEvent(new Event('change', {bubbles: true}));
}`

const clearContentEditableBody = `function(clearFirst){
	this.focus();
	if (clearFirst) { this.textContent = ''; }
}`

const valueOrTextContainsBody = `function(expected){
	const v = (this.value !== undefined ? this.value : '') + '';
	const t = (this.innerText || this.textContent || '') + '';
	return v.indexOf(expected) !== -1 || t.indexOf(expected) !== -1;
}`

func valueOrTextContains(ctx context.Context, sender Sender, objectID, expected string) (bool, error) {
	raw, err := callOnObject(ctx, sender, objectID, valueOrTextContainsBody, expected)
	if err != nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("action: decode valueOrTextContains: %w", err)
	}
	return v, nil
}

type valueTextCondition struct {
	sender   Sender
	resolve  func(ctx context.Context) (string, error)
	expected string
}

func (c valueTextCondition) Evaluate(ctx context.Context) (bool, error) {
	objectID, err := c.resolve(ctx)
	if err != nil {
		return false, nil
	}
	return valueOrTextContains(ctx, c.sender, objectID, c.expected)
}
