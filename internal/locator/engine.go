package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/wire"
)

// Sender is the narrow subset of *session.Session the engine needs.
type Sender interface {
	Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error)
}

const resolveTimeout = 5 * time.Second

// scope is the current DOM anchor a chain step resolves against: either
// the document root (nil) or a pushed frame's content document, reached
// through its iframe element's contentDocument object.
type scope struct {
	nodeID   int64
	objectID string
}

// Engine resolves Locators into remote object ids, maintaining a frame
// stack for switch-to-frame / switch-to-main-frame / switch-to-parent-frame
// (spec.md §4.5).
type Engine struct {
	sender Sender
	bus    *eventbus.Bus
	logger *zap.Logger

	mu         sync.Mutex
	frameStack []scope

	cacheMu sync.Mutex
	cache   map[string]cacheEntry
	cacheTTL time.Duration
}

type cacheEntry struct {
	objectID string
	at       time.Time
}

// New builds an Engine. bus is subscribed so a full main-frame navigation
// bulk-clears the resolution cache (Open Question resolution, spec.md §9 —
// same-document navigations do not clear it).
func New(sender Sender, bus *eventbus.Bus, logger *zap.Logger, cacheTTL time.Duration) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{sender: sender, bus: bus, logger: logger, cache: make(map[string]cacheEntry), cacheTTL: cacheTTL}
	bus.Subscribe(eventbus.Kind(wire.EventPageFrameNavigated), eventbus.HandlerFunc(e.onFrameNavigated))
	return e
}

type frameNavigatedPayload struct {
	Frame struct {
		ID       string `json:"id"`
		ParentID string `json:"parentId"`
	} `json:"frame"`
}

// onFrameNavigated only ever fires for full (cross-document) navigations —
// same-document navigations (hash changes, History API) arrive as
// Page.navigatedWithinDocument instead, which this engine never subscribes
// to. So a bare subscription to frameNavigated already gives same-document
// navigations a pass on the bulk cache clear; only a non-main frame is
// filtered out explicitly here.
func (e *Engine) onFrameNavigated(ev eventbus.Event) {
	var p frameNavigatedPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return
	}
	if p.Frame.ParentID != "" {
		return
	}
	e.cacheMu.Lock()
	e.cache = make(map[string]cacheEntry)
	e.cacheMu.Unlock()
}

// Resolve walks l's chain and returns the leaf step's remote object id.
func (e *Engine) Resolve(ctx context.Context, l Locator) (string, error) {
	if len(l.Steps) == 0 {
		return "", fmt.Errorf("locator: empty chain")
	}

	cur := e.currentFrame()
	if l.Frame != nil {
		frameScope, err := e.resolveFrame(ctx, *l.Frame)
		if err != nil {
			return "", fmt.Errorf("locator: resolve frame: %w", err)
		}
		cur = frameScope
	}

	var objectID string
	for i, step := range l.Steps {
		key := e.cacheKey(l, i)
		if oid, ok := e.cacheGet(key); ok {
			objectID = oid
			cur = scope{objectID: objectID}
			continue
		}

		var err error
		switch step.Strategy {
		case StrategyCSS:
			objectID, cur, err = e.resolveCSS(ctx, cur, step.Value)
		case StrategyXPath:
			objectID, err = e.resolveXPath(ctx, cur, step.Value)
			cur = scope{objectID: objectID}
		case StrategyTextExact:
			objectID, err = e.resolveText(ctx, cur, step.Value, false)
			cur = scope{objectID: objectID}
		case StrategyTextContains:
			objectID, err = e.resolveText(ctx, cur, step.Value, true)
			cur = scope{objectID: objectID}
		default:
			return "", fmt.Errorf("locator: unknown strategy %d", step.Strategy)
		}
		if err != nil {
			return "", err
		}
		e.cacheSet(key, objectID)
	}
	return objectID, nil
}

// ResolveFunc adapts Resolve to wait.ResolveFunc's shape without an import
// dependency on the wait package (wait imports locator results, not the
// reverse).
func (e *Engine) ResolveFunc(l Locator) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) { return e.Resolve(ctx, l) }
}
