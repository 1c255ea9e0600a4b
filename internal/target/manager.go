package target

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/wire"
)

// Sender is the narrow subset of *session.Session the manager needs.
type Sender interface {
	Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error)
}

const defaultCommandTimeout = 5 * time.Second

// Manager owns the live inventory of targets for one session: created on
// Target.targetCreated, mutated in place by Target.targetInfoChanged, and
// evicted on Target.targetDestroyed, following the teacher's
// connection-map idiom in internal/capture (map keyed by id, mutate in
// place, evict on destroy) carried over from WebSocket connections to
// DevTools targets.
type Manager struct {
	sender Sender
	bus    *eventbus.Bus
	logger *zap.Logger

	mu      sync.RWMutex
	targets map[string]*Target
	mainID  string

	unsubs []eventbus.Unsubscribe
}

// New builds a Manager. It does not yet talk to the browser; call Init to
// enable target discovery and auto-attach.
func New(sender Sender, bus *eventbus.Bus, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		sender:  sender,
		bus:     bus,
		logger:  logger,
		targets: make(map[string]*Target),
	}
	m.unsubs = []eventbus.Unsubscribe{
		bus.Subscribe(eventbus.Kind(wire.EventTargetCreated), eventbus.HandlerFunc(m.onCreated)),
		bus.Subscribe(eventbus.Kind(wire.EventTargetInfoChanged), eventbus.HandlerFunc(m.onInfoChanged)),
		bus.Subscribe(eventbus.Kind(wire.EventTargetCrashed), eventbus.HandlerFunc(m.onCrashed)),
		bus.Subscribe(eventbus.Kind(wire.EventTargetDestroyed), eventbus.HandlerFunc(m.onDestroyed)),
	}
	return m
}

// Close unsubscribes the manager from the event bus. Safe to call once
// the owning session is done with target tracking.
func (m *Manager) Close() {
	for _, u := range m.unsubs {
		u()
	}
}

// Init enables target discovery and auto-attach, per spec.md §4.3.
func (m *Manager) Init(ctx context.Context) error {
	if _, err := m.sender.Send(ctx, wire.MethodTargetSetDiscoverTargets, map[string]interface{}{
		"discover": true,
	}, defaultCommandTimeout); err != nil {
		return fmt.Errorf("target: set discover targets: %w", err)
	}
	if _, err := m.sender.Send(ctx, wire.MethodTargetSetAutoAttach, map[string]interface{}{
		"autoAttach":             true,
		"waitForDebuggerOnStart": false,
		"flatten":                true,
	}, defaultCommandTimeout); err != nil {
		return fmt.Errorf("target: set auto attach: %w", err)
	}
	return nil
}

// targetInfoPayload mirrors Target.TargetInfo.
type targetInfoPayload struct {
	TargetInfo struct {
		TargetID         string `json:"targetId"`
		Type             string `json:"type"`
		Title            string `json:"title"`
		URL              string `json:"url"`
		Attached         bool   `json:"attached"`
		OpenerID         string `json:"openerId"`
		BrowserContextID string `json:"browserContextId"`
	} `json:"targetInfo"`
}

func (m *Manager) onCreated(ev eventbus.Event) {
	var p targetInfoPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		m.logger.Warn("target: malformed targetCreated payload", zap.Error(err))
		return
	}
	info := p.TargetInfo
	kind := Kind(info.Type)

	t := &Target{
		ID:               info.TargetID,
		Kind:             kind,
		URL:              info.URL,
		LastKnownURL:     info.URL,
		Title:            info.Title,
		OpenerID:         info.OpenerID,
		BrowserContextID: info.BrowserContextID,
		CreatedAt:        time.Now().UTC(),
	}

	m.mu.Lock()
	if m.mainID == "" && kind == KindPage {
		t.IsMain = true
		m.mainID = t.ID
	}
	m.targets[t.ID] = t
	m.mu.Unlock()

	if kind == KindPage {
		go m.autoAttach(t.ID)
	}
}

// autoAttach issues Target.attachToTarget for a newly discovered page
// target and records the resulting session id, per spec.md §4.3
// "On created+auto-attach+page-kind, issues attach and stores the
// resulting session id." Run off the event-dispatch goroutine so a slow
// attach command never blocks the bus's synchronous fan-out.
func (m *Manager) autoAttach(targetID string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultCommandTimeout)
	defer cancel()

	result, err := m.sender.Send(ctx, wire.MethodTargetAttachToTarget, map[string]interface{}{
		"targetId": targetID,
		"flatten":  true,
	}, defaultCommandTimeout)
	if err != nil {
		m.logger.Debug("target: attach failed", zap.String("target_id", targetID), zap.Error(err))
		return
	}

	var attached struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(result.Result, &attached); err != nil {
		return
	}

	m.mu.Lock()
	if t, ok := m.targets[targetID]; ok {
		t.Attached = true
		t.AttachedSession = attached.SessionID
	}
	m.mu.Unlock()
}

func (m *Manager) onInfoChanged(ev eventbus.Event) {
	var p targetInfoPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return
	}
	info := p.TargetInfo

	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[info.TargetID]
	if !ok {
		return
	}
	t.URL = info.URL
	t.LastKnownURL = info.URL
	t.Title = info.Title
}

func (m *Manager) onCrashed(ev eventbus.Event) {
	var p struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.targets[p.TargetID]; ok {
		t.Attached = false
		t.AttachedSession = ""
	}
}

func (m *Manager) onDestroyed(ev eventbus.Event) {
	var p struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, p.TargetID)

	if m.mainID != p.TargetID {
		return
	}
	m.mainID = ""
	for id, t := range m.targets {
		if t.Kind == KindPage {
			t.IsMain = true
			m.mainID = id
			break
		}
	}
}

// ByID looks up a target by its stable id.
func (m *Manager) ByID(id string) (Target, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	return t.clone(), ok
}

// ByURLContains returns every target whose current URL contains substr.
func (m *Manager) ByURLContains(substr string) []Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Target
	for _, t := range m.targets {
		if strings.Contains(t.URL, substr) {
			out = append(out, t.clone())
		}
	}
	return out
}

// ByKind returns every target of the given kind.
func (m *Manager) ByKind(k Kind) []Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Target
	for _, t := range m.targets {
		if t.Kind == k {
			out = append(out, t.clone())
		}
	}
	return out
}

// Main returns the current main (first page) target, if one exists.
func (m *Manager) Main() (Target, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.mainID == "" {
		return Target{}, false
	}
	t, ok := m.targets[m.mainID]
	return t.clone(), ok
}

// All returns a snapshot of every tracked target.
func (m *Manager) All() []Target {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Target, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, t.clone())
	}
	return out
}

// CreateTarget opens a new page target at url and waits for its
// Target.targetCreated bookkeeping to land before returning.
func (m *Manager) CreateTarget(ctx context.Context, url string) (Target, error) {
	result, err := m.sender.Send(ctx, wire.MethodTargetCreateTarget, map[string]interface{}{
		"url": url,
	}, defaultCommandTimeout)
	if err != nil {
		return Target{}, err
	}

	var created struct {
		TargetID string `json:"targetId"`
	}
	if err := json.Unmarshal(result.Result, &created); err != nil {
		return Target{}, reason.New(reason.CDPCommandFailed, "target: malformed createTarget result")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if t, ok := m.ByID(created.TargetID); ok {
			return t, nil
		}
		time.Sleep(20 * time.Millisecond)
	}
	return Target{ID: created.TargetID, Kind: KindPage, URL: url}, nil
}

// CloseTarget closes the target with the given id.
func (m *Manager) CloseTarget(ctx context.Context, id string) error {
	_, err := m.sender.Send(ctx, wire.MethodTargetCloseTarget, map[string]interface{}{
		"targetId": id,
	}, defaultCommandTimeout)
	return err
}

// WaitForTarget blocks until a target satisfying predicate exists, or
// timeout expires. It first checks the current inventory, then waits on
// created/info-changed events.
func (m *Manager) WaitForTarget(ctx context.Context, predicate func(Target) bool, timeout time.Duration) (Target, bool) {
	for _, t := range m.All() {
		if predicate(t) {
			return t, true
		}
	}

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Target{}, false
		}
		_, ok := m.bus.WaitAny(ctx, []eventbus.Kind{
			eventbus.Kind(wire.EventTargetCreated),
			eventbus.Kind(wire.EventTargetInfoChanged),
		}, remaining, nil)
		if !ok {
			return Target{}, false
		}
		for _, t := range m.All() {
			if predicate(t) {
				return t, true
			}
		}
	}
}

// WaitForPopup returns the first new page target created after the call,
// per spec.md §4.3.
func (m *Manager) WaitForPopup(ctx context.Context, timeout time.Duration) (Target, bool) {
	ev, ok := m.bus.Wait(ctx, eventbus.Kind(wire.EventTargetCreated), timeout, func(e eventbus.Event) bool {
		var p targetInfoPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return false
		}
		return Kind(p.TargetInfo.Type) == KindPage
	})
	if !ok {
		return Target{}, false
	}
	var p targetInfoPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return Target{}, false
	}
	t, found := m.ByID(p.TargetInfo.TargetID)
	if !found {
		return Target{ID: p.TargetInfo.TargetID, Kind: KindPage, URL: p.TargetInfo.URL}, true
	}
	return t, true
}
