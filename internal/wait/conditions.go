package wait

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/dev-console/browserctl/internal/eventbus"
)

// ResolveFunc resolves a locator to the remote object id of its current
// element on each call, so element-kind conditions re-resolve on every
// poll rather than caching a handle that may go stale.
type ResolveFunc func(ctx context.Context) (objectID string, err error)

type elementCondition struct {
	sender  Sender
	resolve ResolveFunc
	body    string
	args    []interface{}
}

func (c elementCondition) Evaluate(ctx context.Context) (bool, error) {
	objectID, err := c.resolve(ctx)
	if err != nil {
		return false, nil
	}
	return evalBoolOnObject(ctx, c.sender, objectID, c.body, c.args...)
}

const existsBody = `function(){ return true; }`

const visibleBody = `function(){
	const el = this;
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none' || parseFloat(style.opacity) === 0) return false;
	if (rect.width <= 0 || rect.height <= 0) return false;
	if (rect.bottom < 0 || rect.right < 0 || rect.top > window.innerHeight || rect.left > window.innerWidth) return false;
	return true;
}`

const clickableBody = `function(){
	const el = this;
	const rect = el.getBoundingClientRect();
	const style = window.getComputedStyle(el);
	if (style.visibility === 'hidden' || style.display === 'none' || parseFloat(style.opacity) === 0) return false;
	if (rect.width <= 0 || rect.height <= 0) return false;
	if (el.disabled) return false;
	const cx = rect.left + rect.width / 2;
	const cy = rect.top + rect.height / 2;
	const top = document.elementFromPoint(cx, cy);
	if (!top) return false;
	return top === el || el.contains(top);
}`

const enabledBody = `function(){ return !this.disabled; }`

const textEqualsBody = `function(expected, contains){
	const text = (this.innerText || this.textContent || '').trim();
	return contains ? text.indexOf(expected) !== -1 : text === expected;
}`

const attributeBody = `function(name, expected, contains){
	const v = this.getAttribute(name);
	if (v === null) return false;
	return contains ? v.indexOf(expected) !== -1 : v === expected;
}`

// ElementExists is met once resolve stops erroring.
func ElementExists(sender Sender, resolve ResolveFunc) Condition {
	return elementCondition{sender: sender, resolve: resolve, body: existsBody}
}

// ElementVisible checks size, computed style, and viewport intersection.
func ElementVisible(sender Sender, resolve ResolveFunc) Condition {
	return elementCondition{sender: sender, resolve: resolve, body: visibleBody}
}

// ElementClickable additionally performs an elementFromPoint occlusion
// check at the element's geometric center.
func ElementClickable(sender Sender, resolve ResolveFunc) Condition {
	return elementCondition{sender: sender, resolve: resolve, body: clickableBody}
}

// ElementEnabled checks the disabled property.
func ElementEnabled(sender Sender, resolve ResolveFunc) Condition {
	return elementCondition{sender: sender, resolve: resolve, body: enabledBody}
}

// TextPresent is met once the element's trimmed text equals the expected
// value, or contains it when contains is true.
func TextPresent(sender Sender, resolve ResolveFunc, expected string, contains bool) Condition {
	return elementCondition{sender: sender, resolve: resolve, body: textEqualsBody, args: []interface{}{expected, contains}}
}

// AttributeEquals/AttributeContains read a single attribute.
func AttributeEquals(sender Sender, resolve ResolveFunc, name, expected string) Condition {
	return elementCondition{sender: sender, resolve: resolve, body: attributeBody, args: []interface{}{name, expected, false}}
}

func AttributeContains(sender Sender, resolve ResolveFunc, name, expected string) Condition {
	return elementCondition{sender: sender, resolve: resolve, body: attributeBody, args: []interface{}{name, expected, true}}
}

type pageCondition struct {
	sender     Sender
	expression string
	check      func(string) bool
}

func (c pageCondition) Evaluate(ctx context.Context) (bool, error) {
	value, err := evalString(ctx, c.sender, c.expression)
	if err != nil {
		return false, err
	}
	return c.check(value), nil
}

// URLContains/URLMatches/TitleContains/DocumentReady/PageLoaded read a
// single page-global value via a fixed Runtime.evaluate expression; the
// expression itself never embeds caller data, only the Go-side comparison
// does.
func URLContains(sender Sender, substr string) Condition {
	return pageCondition{sender: sender, expression: "location.href", check: func(v string) bool {
		return strings.Contains(v, substr)
	}}
}

func URLMatches(sender Sender, pattern *regexp.Regexp) Condition {
	return pageCondition{sender: sender, expression: "location.href", check: pattern.MatchString}
}

func TitleContains(sender Sender, substr string) Condition {
	return pageCondition{sender: sender, expression: "document.title", check: func(v string) bool {
		return strings.Contains(v, substr)
	}}
}

func DocumentReady(sender Sender) Condition {
	return pageCondition{sender: sender, expression: "document.readyState", check: func(v string) bool {
		return v == "interactive" || v == "complete"
	}}
}

func PageLoaded(sender Sender) Condition {
	return pageCondition{sender: sender, expression: "document.readyState", check: func(v string) bool {
		return v == "complete"
	}}
}

// NetworkMonitor is the subset of *eventbus.Bus the network-idle condition
// needs.
type NetworkMonitor interface {
	PendingRequests() map[string]bool
}

type networkIdleCondition struct {
	monitor NetworkMonitor
}

func (c networkIdleCondition) Evaluate(context.Context) (bool, error) {
	return len(c.monitor.PendingRequests()) == 0, nil
}

// NetworkIdle/NoPendingRequests are met once the event-bus-derived pending
// request count reaches zero and stays there for the stability window.
func NetworkIdle(bus *eventbus.Bus) Condition   { return networkIdleCondition{monitor: bus} }
func NoPendingRequests(bus *eventbus.Bus) Condition { return networkIdleCondition{monitor: bus} }

// Rect is a bounding rectangle sample.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) closeTo(other Rect, tolerance float64) bool {
	return math.Abs(r.X-other.X) <= tolerance &&
		math.Abs(r.Y-other.Y) <= tolerance &&
		math.Abs(r.Width-other.Width) <= tolerance &&
		math.Abs(r.Height-other.Height) <= tolerance
}

const animationsProbeBody = `function(){
	if (typeof this.getAnimations !== 'function') return 0;
	try { return this.getAnimations().length; } catch (e) { return 0; }
}`

// layoutStableCondition compares each sampled bounding rect against the
// previous one with a 2px tolerance, additionally consulting a
// getAnimations() probe where available (Open Question resolution,
// spec.md §9): an active compositor animation keeps the condition from
// reporting stable even if two samples happen to land within tolerance.
type layoutStableCondition struct {
	sender  Sender
	resolve ResolveFunc
	last    *Rect
}

func (c *layoutStableCondition) Evaluate(ctx context.Context) (bool, error) {
	objectID, err := c.resolve(ctx)
	if err != nil {
		c.last = nil
		return false, nil
	}

	if animating, _ := evalBoolOnObjectInt(ctx, c.sender, objectID); animating {
		c.last = nil
		return false, nil
	}

	rect, err := evalRectOnObject(ctx, c.sender, objectID)
	if err != nil {
		c.last = nil
		return false, err
	}

	prev := c.last
	r := rect
	c.last = &r
	if prev == nil {
		return false, nil
	}
	return prev.closeTo(rect, 2.0), nil
}

func evalBoolOnObjectInt(ctx context.Context, sender Sender, objectID string) (bool, error) {
	n, err := evalIntOnObject(ctx, sender, objectID, animationsProbeBody)
	if err != nil {
		return false, nil
	}
	return n > 0, nil
}

// LayoutStable builds the layout-stability condition for the element
// resolve yields.
func LayoutStable(sender Sender, resolve ResolveFunc) Condition {
	return &layoutStableCondition{sender: sender, resolve: resolve}
}
