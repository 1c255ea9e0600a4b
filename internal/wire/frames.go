// Package wire defines the DevTools JSON wire frames and the helpers that
// build protocol commands without ever splicing caller-supplied text into
// a JavaScript source string (spec.md §9, "string-interpolated page
// scripts"): every in-page evaluation that takes caller data goes through
// CallFunctionOn with a function body plus a structured arguments array;
// Runtime.evaluate is used only for fixed expressions.
package wire

import "encoding/json"

// CommandFrame is an outbound `{id, method, params}` request.
type CommandFrame struct {
	ID     int64           `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ResponseFrame is an inbound `{id, result?, error?}` reply.
type ResponseFrame struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProtocolError  `json:"error,omitempty"`
}

// EventFrame is an inbound `{method, params}` notification, optionally
// scoped to an attached session via sessionId.
type EventFrame struct {
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// ProtocolError is the `error` member of a ResponseFrame.
type ProtocolError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProtocolError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// RawFrame peeks at a frame to decide whether it is a response (has "id")
// or an event (has "method"), without fully decoding either shape.
type RawFrame struct {
	ID     *int64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ProtocolError  `json:"error,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
}

// IsResponse reports whether the raw frame carries a command id.
func (f RawFrame) IsResponse() bool { return f.ID != nil }

// CallArgument is one positional argument passed to CallFunctionOn,
// serialized by value (never embedded into the function source).
type CallArgument struct {
	Value interface{} `json:"value,omitempty"`
}

// CallFunctionOnParams is Runtime.callFunctionOn's params shape. functionDeclaration
// is always a fixed function literal; values flow in through arguments,
// never through string formatting of the declaration itself.
type CallFunctionOnParams struct {
	FunctionDeclaration string         `json:"functionDeclaration"`
	ObjectID            string         `json:"objectId,omitempty"`
	ExecutionContextID   int64         `json:"executionContextId,omitempty"`
	Arguments           []CallArgument `json:"arguments,omitempty"`
	ReturnByValue       bool           `json:"returnByValue"`
	AwaitPromise        bool           `json:"awaitPromise"`
}

// NewCallFunctionOn builds params for calling a fixed JS function body
// with the given out-of-band arguments against an object (an element
// handle's objectId) or an execution context.
func NewCallFunctionOn(functionBody string, args ...interface{}) CallFunctionOnParams {
	callArgs := make([]CallArgument, len(args))
	for i, a := range args {
		callArgs[i] = CallArgument{Value: a}
	}
	return CallFunctionOnParams{
		FunctionDeclaration: functionBody,
		Arguments:           callArgs,
		ReturnByValue:       true,
		AwaitPromise:        true,
	}
}

// OnObject scopes the call to a specific element handle's remote object id.
func (p CallFunctionOnParams) OnObject(objectID string) CallFunctionOnParams {
	p.ObjectID = objectID
	return p
}

// InContext scopes the call to a frame's execution context, for calls that
// are not bound to a specific element (e.g. reading location.href).
func (p CallFunctionOnParams) InContext(executionContextID int64) CallFunctionOnParams {
	p.ExecutionContextID = executionContextID
	return p
}

// Marshal encodes params as json.RawMessage for embedding in a CommandFrame.
func Marshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Every params type in this package is composed of JSON-safe
		// primitives; a marshal failure here would be a programming
		// error, not a runtime condition callers can act on.
		return json.RawMessage(`{}`)
	}
	return data
}
