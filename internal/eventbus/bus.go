package eventbus

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler is called for every event of a subscribed kind. Handler errors
// are never allowed to abort emission (spec.md §4.1 guarantee (c)); a
// Handler therefore has no error return at all, matching the Design Note
// in spec.md §9 that callback capabilities should be explicit interfaces
// rather than duck-typed closures that might panic or return ignored
// errors.
type Handler interface {
	Handle(Event)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(Event)

// Handle implements Handler.
func (f HandlerFunc) Handle(e Event) { f(e) }

// Unsubscribe removes a previously registered handler. Safe to call more
// than once.
type Unsubscribe func()

const defaultHistoryCapacity = 1000

type subscription struct {
	id      uint64
	kind    Kind
	handler Handler
	once    bool
}

type waiter struct {
	kinds     map[Kind]bool
	predicate func(Event) bool
	ch        chan Event
}

// Bus is the typed pub/sub core. One Bus is owned by one Session; every
// other subsystem holds a non-owning reference and subscribes through it
// (spec.md §9, "cyclic references" design note).
type Bus struct {
	mu      sync.Mutex
	subs    map[Kind][]*subscription
	nextID  uint64
	history []Event
	histCap int
	waiters []*waiter
	logger  *zap.Logger
}

// New builds a Bus with the given bounded history capacity. A capacity of
// 0 uses the spec's default of 1000.
func New(historyCapacity int, logger *zap.Logger) *Bus {
	if historyCapacity <= 0 {
		historyCapacity = defaultHistoryCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subs:    make(map[Kind][]*subscription),
		histCap: historyCapacity,
		logger:  logger,
	}
}

// Subscribe registers handler for every event of kind until Unsubscribe is
// called.
func (b *Bus) Subscribe(kind Kind, handler Handler) Unsubscribe {
	return b.subscribe(kind, handler, false)
}

// SubscribeOnce registers handler for a single matching event.
func (b *Bus) SubscribeOnce(kind Kind, handler Handler) Unsubscribe {
	return b.subscribe(kind, handler, true)
}

func (b *Bus) subscribe(kind Kind, handler Handler, once bool) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	sub := &subscription{id: id, kind: kind, handler: handler, once: once}
	b.subs[kind] = append(b.subs[kind], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[kind]
		for i, s := range list {
			if s.id == id {
				b.subs[kind] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
}

// Emit synchronously fans e out to all live handlers in registration
// order, appends it to the bounded history, and wakes matching waiters.
// Handler panics are recovered and logged so one misbehaving subscriber
// can never poison the bus for the rest.
func (b *Bus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	live := append([]*subscription(nil), b.subs[e.Kind]...)
	var remaining []*subscription
	for _, s := range live {
		if !s.once {
			remaining = append(remaining, s)
		}
	}
	if len(remaining) != len(b.subs[e.Kind]) {
		b.subs[e.Kind] = remaining
	}

	b.history = append(b.history, e)
	if len(b.history) > b.histCap {
		b.history = b.history[len(b.history)-b.histCap:]
	}

	matched := make([]*waiter, 0)
	stillWaiting := b.waiters[:0:0]
	for _, w := range b.waiters {
		if w.kinds[e.Kind] && (w.predicate == nil || w.predicate(e)) {
			matched = append(matched, w)
			continue
		}
		stillWaiting = append(stillWaiting, w)
	}
	b.waiters = stillWaiting
	b.mu.Unlock()

	for _, s := range live {
		b.dispatch(s, e)
	}
	for _, w := range matched {
		select {
		case w.ch <- e:
		default:
		}
		close(w.ch)
	}
}

func (b *Bus) dispatch(s *subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", zap.Any("kind", e.Kind), zap.Any("panic", r))
		}
	}()
	s.handler.Handle(e)
}

// Wait blocks until an event of kind matching predicate arrives, or the
// deadline implied by timeout expires. predicate may be nil to match any
// event of that kind.
func (b *Bus) Wait(ctx context.Context, kind Kind, timeout time.Duration, predicate func(Event) bool) (Event, bool) {
	return b.WaitAny(ctx, []Kind{kind}, timeout, predicate)
}

// WaitAny blocks until an event of any of kinds matching predicate
// arrives, or the timeout expires.
func (b *Bus) WaitAny(ctx context.Context, kinds []Kind, timeout time.Duration, predicate func(Event) bool) (Event, bool) {
	kindSet := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}
	w := &waiter{kinds: kindSet, predicate: predicate, ch: make(chan Event, 1)}

	b.mu.Lock()
	b.waiters = append(b.waiters, w)
	b.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e, ok := <-w.ch:
		if !ok {
			return Event{}, false
		}
		return e, true
	case <-timer.C:
		b.removeWaiter(w)
		return Event{}, false
	case <-ctx.Done():
		b.removeWaiter(w)
		return Event{}, false
	}
}

func (b *Bus) removeWaiter(target *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range b.waiters {
		if w == target {
			b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
			return
		}
	}
}

// History returns a copy of the current bounded history, newest-last.
func (b *Bus) History() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.history))
	copy(out, b.history)
	return out
}

// PendingRequests derives the set of in-flight network request ids from
// history: request-will-be-sent adds, loading-finished/failed removes.
func (b *Bus) PendingRequests() map[string]bool {
	const (
		kindSent     Kind = "Network.requestWillBeSent"
		kindFinished Kind = "Network.loadingFinished"
		kindFailed   Kind = "Network.loadingFailed"
	)
	pending := make(map[string]bool)
	for _, e := range b.History() {
		switch e.Kind {
		case kindSent:
			if id, ok := e.Field("requestId"); ok {
				pending[id] = true
			}
		case kindFinished, kindFailed:
			if id, ok := e.Field("requestId"); ok {
				delete(pending, id)
			}
		}
	}
	return pending
}
