package navigation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wait"
	"github.com/dev-console/browserctl/internal/wire"
)

type frameNavigatedPayload struct {
	Frame struct {
		ParentID string `json:"parentId"`
	} `json:"frame"`
}

// Navigate sends Page.navigate and waits according to waitUntil, counting
// main-frame frameNavigated events across the call to detect a redirect
// loop (spec.md §4.7, ceiling default 10).
func (m *Manager) Navigate(ctx context.Context, url string, timeout time.Duration, waitUntil WaitUntil) Result {
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var count int32
	redirectExceeded := make(chan struct{}, 1)
	unsub := m.bus.Subscribe(eventbus.Kind(wire.EventPageFrameNavigated), eventbus.HandlerFunc(func(e eventbus.Event) {
		var p frameNavigatedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil || p.Frame.ParentID != "" {
			return
		}
		if int(atomic.AddInt32(&count, 1)) > m.cfg.RedirectCeiling {
			select {
			case redirectExceeded <- struct{}{}:
			default:
			}
		}
	}))
	defer unsub()

	if _, err := m.sender.Send(ctx, wire.MethodPageNavigate, map[string]interface{}{"url": url}, timeout); err != nil {
		return Result{Reason: reason.New(reason.NavigationFailed, err.Error())}
	}

	select {
	case <-redirectExceeded:
		return m.redirectLoopResult()
	default:
	}

	switch waitUntil {
	case WaitCommit:
		return Result{Reason: reason.Successf("navigation committed")}
	case WaitDOMContentLoaded:
		return m.waitForPageEvent(ctx, wire.EventPageDOMContentEventFired, redirectExceeded)
	case WaitLoad:
		return m.waitForPageEvent(ctx, wire.EventPageLoadEventFired, redirectExceeded)
	case WaitNetworkIdle:
		return m.waitNetworkIdle(ctx, redirectExceeded)
	default:
		return Result{Reason: reason.New(reason.ValidationFailed, "unknown wait-until tier")}
	}
}

func (m *Manager) redirectLoopResult() Result {
	return Result{Reason: reason.New(reason.RedirectLoop, fmt.Sprintf("more than %d navigations observed during the call", m.cfg.RedirectCeiling))}
}

func (m *Manager) waitForPageEvent(ctx context.Context, kind string, redirectExceeded chan struct{}) Result {
	done := make(chan struct{}, 1)
	go func() {
		if _, ok := m.bus.Wait(ctx, eventbus.Kind(kind), remaining(ctx, m.cfg.DefaultTimeout()), nil); ok {
			done <- struct{}{}
		}
	}()

	select {
	case <-redirectExceeded:
		return m.redirectLoopResult()
	case <-done:
		return Result{Reason: reason.Successf("navigation reached " + kind)}
	case <-ctx.Done():
		return Result{Reason: reason.New(reason.NavigationTimeout, "timed out waiting for "+kind)}
	}
}

func (m *Manager) waitNetworkIdle(ctx context.Context, redirectExceeded chan struct{}) Result {
	done := make(chan reason.Reason, 1)
	go func() {
		done <- m.wait.Wait(ctx, wait.NetworkIdle(m.bus), wait.TierState, remaining(ctx, m.cfg.DefaultTimeout()))
	}()

	select {
	case <-redirectExceeded:
		return m.redirectLoopResult()
	case r := <-done:
		return Result{Reason: r}
	case <-ctx.Done():
		return Result{Reason: reason.New(reason.NavigationTimeout, "timed out waiting for network idle")}
	}
}
