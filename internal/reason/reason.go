// Package reason defines the closed reason-code enumeration attached to
// every terminal outcome in the client, independent of natural-language
// messages. Every public operation across the subsystems returns a Result
// carrying one of these codes on failure instead of an ad hoc error string.
package reason

import "time"

// Code is a value from the closed reason-code enumeration.
type Code string

// Timeout family.
const (
	TimeoutStep    Code = "timeout-step"
	TimeoutState   Code = "timeout-state"
	TimeoutJob     Code = "timeout-job"
	TimeoutNetwork Code = "timeout-network"
	TimeoutRender  Code = "timeout-render"
)

// Element family.
const (
	ElementNotFound     Code = "element-not-found"
	ElementNotVisible   Code = "element-not-visible"
	ElementNotClickable Code = "element-not-clickable"
	ElementStale        Code = "element-stale"
	ElementDetached     Code = "element-detached"
	ElementCovered      Code = "element-covered"
)

// Navigation family.
const (
	NavigationFailed  Code = "navigation-failed"
	NavigationTimeout Code = "navigation-timeout"
	RedirectLoop      Code = "redirect-loop"
	UnexpectedPage    Code = "unexpected-page"
	SPANotReady       Code = "spa-not-ready"
)

// Network family.
const (
	NetworkTimeout Code = "network-timeout"
	NetworkError   Code = "network-error"
)

// CDP / transport family.
const (
	CDPCommandFailed     Code = "cdp-command-failed"
	CDPDisconnected      Code = "cdp-disconnected"
	CDPReconnectFailed   Code = "cdp-reconnect-failed"
	BrowserCrashed       Code = "browser-crashed"
	BrowserHung          Code = "browser-hung"
	BrowserNotResponding Code = "browser-not-responding"
	TargetClosed         Code = "target-closed"
	TargetCrashed        Code = "target-crashed"
)

// Validation / guard family.
const (
	PreconditionFailed  Code = "precondition-failed"
	PostconditionFailed Code = "postcondition-failed"
	GuardRejected       Code = "guard-rejected"
	ValidationFailed    Code = "validation-failed"
)

// Recovery family (recorded on job traces, not usually returned to callers
// directly).
const (
	RetryStep        Code = "retry-step"
	RetryState       Code = "retry-state"
	RecreateContext  Code = "recreate-context"
	RestartBrowser   Code = "restart-browser"
)

// Quota family.
const (
	QueueFull   Code = "queue-full"
	Throttled   Code = "throttled"
	WorkerBusy  Code = "worker-busy"
)

// File I/O family.
const (
	UploadFailed   Code = "upload-failed"
	DownloadFailed Code = "download-failed"
)

// System family.
const (
	SystemError   Code = "system-error"
	MemoryLimit   Code = "memory-limit"
	ResourceLimit Code = "resource-limit"
)

// Success family.
const (
	Success           Code = "success"
	SkippedIdempotent Code = "skipped-idempotent"
)

// recoverable records, per code, whether the recovery manager should ever
// attempt to act on this reason at all. Codes absent from this map default
// to recoverable=false (validation/logic failures are never retried).
var recoverable = map[Code]bool{
	TimeoutStep:         true,
	TimeoutState:        true,
	TimeoutJob:          true,
	TimeoutNetwork:      true,
	TimeoutRender:       true,
	ElementNotFound:     true,
	ElementNotClickable: true,
	ElementCovered:      true,
	NavigationFailed:    true,
	NavigationTimeout:   true,
	NetworkTimeout:      true,
	NetworkError:        true,
	CDPCommandFailed:    true,
	CDPDisconnected:     true,
	TargetClosed:        true,
	TargetCrashed:       true,
	ElementDetached:     true,
	BrowserCrashed:      true,
	BrowserHung:         true,
	BrowserNotResponding: true,
	CDPReconnectFailed:  true,
}

// Valid reports whether c is a member of the closed enumeration.
func Valid(c Code) bool {
	_, known := recoverable[c]
	if known {
		return true
	}
	switch c {
	case PreconditionFailed, PostconditionFailed, GuardRejected, ValidationFailed,
		RetryStep, RetryState, RecreateContext, RestartBrowser,
		QueueFull, Throttled, WorkerBusy,
		UploadFailed, DownloadFailed,
		SystemError, MemoryLimit, ResourceLimit,
		Success, SkippedIdempotent,
		SPANotReady, RedirectLoop, UnexpectedPage,
		ElementNotVisible, ElementStale:
		return true
	}
	return false
}

// Reason is the structured failure (or success) record attached to every
// terminal outcome.
type Reason struct {
	Code            Code                   `json:"code"`
	Message         string                 `json:"message"`
	Timestamp       time.Time              `json:"timestamp"`
	Context         map[string]interface{} `json:"context,omitempty"`
	Recoverable     bool                   `json:"recoverable"`
	SuggestedAction string                 `json:"suggested_action,omitempty"`
}

// New builds a Reason, stamping the current time and looking up the
// default recoverable flag for the code. Use WithContext/WithSuggestion to
// add detail.
func New(code Code, message string) Reason {
	return Reason{
		Code:        code,
		Message:     message,
		Timestamp:   time.Now().UTC(),
		Recoverable: recoverable[code],
	}
}

// Successf builds the terminal success reason.
func Successf(message string) Reason {
	r := New(Success, message)
	r.Recoverable = false
	return r
}

// SkippedIdempotentf builds the reason an action returns when its
// idempotency guard already reports the target state was reached.
func SkippedIdempotentf(message string) Reason {
	r := New(SkippedIdempotent, message)
	r.Recoverable = false
	return r
}

// WithContext returns a copy of r with ctx merged into Context.
func (r Reason) WithContext(ctx map[string]interface{}) Reason {
	if len(ctx) == 0 {
		return r
	}
	merged := make(map[string]interface{}, len(r.Context)+len(ctx))
	for k, v := range r.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	r.Context = merged
	return r
}

// WithSuggestion returns a copy of r with SuggestedAction set.
func (r Reason) WithSuggestion(action string) Reason {
	r.SuggestedAction = action
	return r
}

// IsSuccess reports whether the reason represents a successful or
// idempotent-skip outcome.
func (r Reason) IsSuccess() bool {
	return r.Code == Success || r.Code == SkippedIdempotent
}

// Error implements the error interface so a Reason can be returned (or
// wrapped) anywhere Go idiom expects an error, while still carrying its
// structured fields for callers that type-assert back to Reason.
func (r Reason) Error() string {
	return string(r.Code) + ": " + r.Message
}
