package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dev-console/browserctl/internal/wire"
)

type runtimeValueResult struct {
	Result struct {
		Type     string `json:"type"`
		Subtype  string `json:"subtype,omitempty"`
		ObjectID string `json:"objectId,omitempty"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails,omitempty"`
}

type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
}

// scopeNodeID resolves cur to a protocol node id, materializing one from
// an object id via DOM.requestNode, or from the document root via
// DOM.getDocument when cur carries neither.
func (e *Engine) scopeNodeID(ctx context.Context, cur scope) (int64, error) {
	if cur.nodeID != 0 {
		return cur.nodeID, nil
	}
	if cur.objectID != "" {
		res, err := e.sender.Send(ctx, wire.MethodDOMRequestNode, map[string]interface{}{"objectId": cur.objectID}, resolveTimeout)
		if err != nil {
			return 0, err
		}
		var out struct {
			NodeID int64 `json:"nodeId"`
		}
		if err := json.Unmarshal(res.Result, &out); err != nil {
			return 0, fmt.Errorf("locator: requestNode decode: %w", err)
		}
		return out.NodeID, nil
	}
	res, err := e.sender.Send(ctx, wire.MethodDOMGetDocument, map[string]interface{}{"depth": 0}, resolveTimeout)
	if err != nil {
		return 0, err
	}
	var out struct {
		Root struct {
			NodeID int64 `json:"nodeId"`
		} `json:"root"`
	}
	if err := json.Unmarshal(res.Result, &out); err != nil {
		return 0, fmt.Errorf("locator: getDocument decode: %w", err)
	}
	return out.Root.NodeID, nil
}

// scopeObjectID resolves cur to a remote object id usable as the `this`
// binding for an in-page function call, materializing one from
// document.documentElement when cur carries neither a node nor an object.
func (e *Engine) scopeObjectID(ctx context.Context, cur scope) (string, error) {
	if cur.objectID != "" {
		return cur.objectID, nil
	}
	res, err := e.sender.Send(ctx, wire.MethodRuntimeEvaluate, evaluateParams{
		Expression: "document.documentElement", ReturnByValue: false,
	}, resolveTimeout)
	if err != nil {
		return "", err
	}
	var rr runtimeValueResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return "", fmt.Errorf("locator: evaluate documentElement decode: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return "", fmt.Errorf("locator: evaluate documentElement threw: %s", rr.ExceptionDetails.Text)
	}
	if rr.Result.ObjectID == "" {
		return "", fmt.Errorf("locator: no document element available")
	}
	return rr.Result.ObjectID, nil
}

// resolveCSS resolves selector through the protocol's DOM query against
// cur's scope node, per spec.md §4.5.
func (e *Engine) resolveCSS(ctx context.Context, cur scope, selector string) (string, scope, error) {
	nodeID, err := e.scopeNodeID(ctx, cur)
	if err != nil {
		return "", scope{}, fmt.Errorf("locator: resolve scope for %q: %w", selector, err)
	}

	res, err := e.sender.Send(ctx, wire.MethodDOMQuerySelector,
		map[string]interface{}{"nodeId": nodeID, "selector": selector}, resolveTimeout)
	if err != nil {
		return "", scope{}, err
	}
	var out struct {
		NodeID int64 `json:"nodeId"`
	}
	if err := json.Unmarshal(res.Result, &out); err != nil {
		return "", scope{}, fmt.Errorf("locator: querySelector decode: %w", err)
	}
	if out.NodeID == 0 {
		return "", scope{}, fmt.Errorf("locator: no element matches %q", selector)
	}

	res, err = e.sender.Send(ctx, wire.MethodDOMResolveNode,
		map[string]interface{}{"nodeId": out.NodeID}, resolveTimeout)
	if err != nil {
		return "", scope{}, err
	}
	var resolved struct {
		Object struct {
			ObjectID string `json:"objectId"`
		} `json:"object"`
	}
	if err := json.Unmarshal(res.Result, &resolved); err != nil {
		return "", scope{}, fmt.Errorf("locator: resolveNode decode: %w", err)
	}
	return resolved.Object.ObjectID, scope{nodeID: out.NodeID, objectID: resolved.Object.ObjectID}, nil
}

const xpathBody = `function(expr){
	const ctxNode = this || document;
	const result = document.evaluate(expr, ctxNode, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null);
	return result.singleNodeValue;
}`

// resolveXPath evaluates expr in-page against cur's scope object, per
// spec.md §4.5.
func (e *Engine) resolveXPath(ctx context.Context, cur scope, expr string) (string, error) {
	rootObjectID, err := e.scopeObjectID(ctx, cur)
	if err != nil {
		return "", fmt.Errorf("locator: xpath scope: %w", err)
	}
	return e.callReturningObject(ctx, rootObjectID, xpathBody, expr)
}

const textWalkBody = `function(text, contains){
	const root = this || document.body;
	const matches = (node) => {
		if (!node.childNodes || node.childNodes.length > 3) return false;
		const t = (node.innerText || node.textContent || '').trim();
		if (!t) return false;
		return contains ? t.indexOf(text) !== -1 : t === text;
	};
	const walker = document.createTreeWalker(root, NodeFilter.SHOW_ELEMENT);
	let node = walker.currentNode;
	if (matches(node)) return node;
	while ((node = walker.nextNode())) {
		if (matches(node)) return node;
	}
	return null;
}`

// resolveText walks the DOM from cur's scope object, finding the first
// element whose trimmed text equals (exact) or contains (contains) value,
// restricted to elements with <=3 child nodes to prefer leaves, per
// spec.md §4.5.
func (e *Engine) resolveText(ctx context.Context, cur scope, value string, contains bool) (string, error) {
	rootObjectID, err := e.scopeObjectID(ctx, cur)
	if err != nil {
		return "", fmt.Errorf("locator: text scope: %w", err)
	}
	return e.callReturningObject(ctx, rootObjectID, textWalkBody, value, contains)
}

func (e *Engine) callReturningObject(ctx context.Context, objectID string, body string, args ...interface{}) (string, error) {
	params := wire.NewCallFunctionOn(body, args...).OnObject(objectID)
	params.ReturnByValue = false
	res, err := e.sender.Send(ctx, wire.MethodRuntimeCallFunctionOn, params, resolveTimeout)
	if err != nil {
		return "", err
	}
	var rr runtimeValueResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return "", fmt.Errorf("locator: decode call result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return "", fmt.Errorf("locator: in-page evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	if rr.Result.ObjectID == "" {
		return "", fmt.Errorf("locator: no matching element")
	}
	return rr.Result.ObjectID, nil
}

const contentDocumentBody = `function(){ return this.contentDocument; }`

// resolveFrame resolves frameLocator's element against the document root
// and returns the scope of its content document.
func (e *Engine) resolveFrame(ctx context.Context, frameLocator Locator) (scope, error) {
	frameObjectID, err := e.Resolve(ctx, frameLocator)
	if err != nil {
		return scope{}, err
	}
	docObjectID, err := e.callReturningObject(ctx, frameObjectID, contentDocumentBody)
	if err != nil {
		return scope{}, fmt.Errorf("locator: frame has no content document: %w", err)
	}
	return scope{objectID: docObjectID}, nil
}

// SwitchToFrame pushes the current frame context and switches resolution
// to frameLocator's content document.
func (e *Engine) SwitchToFrame(ctx context.Context, frameLocator Locator) error {
	fs, err := e.resolveFrame(ctx, frameLocator)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.frameStack = append(e.frameStack, fs)
	e.mu.Unlock()
	return nil
}

// SwitchToParentFrame pops one level of the frame stack.
func (e *Engine) SwitchToParentFrame() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frameStack) > 0 {
		e.frameStack = e.frameStack[:len(e.frameStack)-1]
	}
}

// SwitchToMainFrame clears the frame stack entirely.
func (e *Engine) SwitchToMainFrame() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frameStack = nil
}

func (e *Engine) currentFrame() scope {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.frameStack) == 0 {
		return scope{}
	}
	return e.frameStack[len(e.frameStack)-1]
}

func (e *Engine) cacheKey(l Locator, stepIndex int) string {
	key := ""
	for i := 0; i <= stepIndex; i++ {
		key += strconv.Itoa(int(l.Steps[i].Strategy)) + ":" + l.Steps[i].Value + "|"
	}
	if l.Frame != nil {
		key = "frame:" + e.cacheKey(*l.Frame, len(l.Frame.Steps)-1) + ">" + key
	}
	return key
}

func (e *Engine) cacheGet(key string) (string, bool) {
	if e.cacheTTL <= 0 {
		return "", false
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	entry, ok := e.cache[key]
	if !ok || time.Since(entry.at) > e.cacheTTL {
		return "", false
	}
	return entry.objectID, true
}

func (e *Engine) cacheSet(key, objectID string) {
	if e.cacheTTL <= 0 {
		return
	}
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache[key] = cacheEntry{objectID: objectID, at: time.Now()}
}
