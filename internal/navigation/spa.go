package navigation

import (
	"context"
	"regexp"
	"time"

	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wait"
)

// RoutePattern matches a post-route-change URL either by substring or by
// regular expression; exactly one of the two should be set.
type RoutePattern struct {
	Contains string
	Regexp   *regexp.Regexp
}

func (p RoutePattern) condition(sender wait.Sender) wait.Condition {
	if p.Regexp != nil {
		return wait.URLMatches(sender, p.Regexp)
	}
	return wait.URLContains(sender, p.Contains)
}

var defaultLoadingIndicatorSelectors = []string{
	".spinner", ".loading", ".loading-indicator", "[aria-busy=\"true\"]", "[data-loading=\"true\"]",
}

// SPAOptions configures NavigateSPA. Zero-valued fields take the package
// defaults.
type SPAOptions struct {
	URLTimeout              time.Duration
	DataFetchTimeout        time.Duration
	LoadingIndicatorTimeout time.Duration
	LoadingIndicatorSelectors []string
	RenderStabilityWindow   time.Duration
}

func (o SPAOptions) withDefaults() SPAOptions {
	if o.URLTimeout <= 0 {
		o.URLTimeout = 5 * time.Second
	}
	if o.DataFetchTimeout <= 0 {
		o.DataFetchTimeout = 10 * time.Second
	}
	if o.LoadingIndicatorTimeout <= 0 {
		o.LoadingIndicatorTimeout = 5 * time.Second
	}
	if len(o.LoadingIndicatorSelectors) == 0 {
		o.LoadingIndicatorSelectors = defaultLoadingIndicatorSelectors
	}
	if o.RenderStabilityWindow <= 0 {
		o.RenderStabilityWindow = 300 * time.Millisecond
	}
	return o
}

// NavigateSPA runs a caller-supplied action that triggers an in-app route
// change, then waits (a) for the URL to match pattern, (b) for network
// idle, (c) for loading indicators to disappear, and (d) a short render
// stability window, per spec.md §4.7.
func (m *Manager) NavigateSPA(ctx context.Context, action func(ctx context.Context) error, pattern RoutePattern, opts SPAOptions) Result {
	opts = opts.withDefaults()

	if err := action(ctx); err != nil {
		return Result{Reason: reason.New(reason.SPANotReady, "route-change action failed: "+err.Error())}
	}

	if r := m.wait.Wait(ctx, pattern.condition(m.sender), wait.TierStep, opts.URLTimeout); !r.IsSuccess() {
		return Result{Reason: reason.New(reason.SPANotReady, "url pattern did not match: "+r.Message)}
	}

	if r := m.wait.Wait(ctx, wait.NetworkIdle(m.bus), wait.TierStep, opts.DataFetchTimeout); !r.IsSuccess() {
		return Result{Reason: reason.New(reason.SPANotReady, "network did not go idle: "+r.Message)}
	}

	indicatorsGone := loadingIndicatorsGoneCondition{sender: m.sender, selectors: opts.LoadingIndicatorSelectors}
	if r := m.wait.Wait(ctx, indicatorsGone, wait.TierStep, opts.LoadingIndicatorTimeout); !r.IsSuccess() {
		return Result{Reason: reason.New(reason.SPANotReady, "loading indicators did not disappear: "+r.Message)}
	}

	select {
	case <-ctx.Done():
		return Result{Reason: reason.New(reason.SPANotReady, "cancelled during render stability window")}
	case <-time.After(opts.RenderStabilityWindow):
	}

	return Result{Reason: reason.Successf("spa route change settled")}
}

// IsSPA heuristically detects a single-page-app by probing known globals
// and DOM markers, caching the result on the manager until ResetSPADetection
// is called (spec.md §4.7, "result is cached on the manager").
func (m *Manager) IsSPA(ctx context.Context) (bool, error) {
	m.spaMu.Lock()
	cached := m.spaDetected
	m.spaMu.Unlock()
	if cached != nil {
		return *cached, nil
	}

	detected, err := evalSPAProbe(ctx, m.sender)
	if err != nil {
		return false, err
	}

	m.spaMu.Lock()
	m.spaDetected = &detected
	m.spaMu.Unlock()
	return detected, nil
}

// ResetSPADetection clears the cached SPA-detection result, e.g. after a
// full navigation to a different origin.
func (m *Manager) ResetSPADetection() {
	m.spaMu.Lock()
	m.spaDetected = nil
	m.spaMu.Unlock()
}
