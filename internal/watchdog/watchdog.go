// Package watchdog implements the Watchdog (spec.md §4.10): per-context
// health tracking, a 1s scanner for heartbeat/event/progress staleness and
// hard job timeouts, and poison-with-cooldown bookkeeping built on
// sony/gobreaker's half-open-after-timeout state machine, which maps
// directly onto "poisoned for a cooldown, then allowed back in a degraded
// state."
package watchdog

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/config"
)

// Killer disposes of a context the watchdog has declared dead. Per
// spec.md §4.10, a caller-supplied closure: typically "close the tab", or
// on a browser-wide failure, "terminate the browser process".
type Killer interface {
	Kill(ctx context.Context) bool
}

// KillerFunc adapts a plain function to Killer.
type KillerFunc func(ctx context.Context) bool

// Kill implements Killer.
func (f KillerFunc) Kill(ctx context.Context) bool { return f(ctx) }

// Health is the per-context status exposed to callers for diagnostics.
type Health struct {
	LastHeartbeat time.Time
	LastEvent     time.Time
	LastProgress  time.Time
	JobStarted    time.Time
	Failures      int
	Degraded      bool
	Unresponsive  bool
	Dead          bool
	Poisoned      bool
}

type contextRecord struct {
	health Health
	killer Killer
	cb     *gobreaker.CircuitBreaker
}

// Watchdog tracks per-context health and runs one background scanner
// irrespective of the number of tracked contexts (spec.md §5).
type Watchdog struct {
	cfg    config.WatchdogConfig
	logger *zap.Logger

	mu       sync.Mutex
	contexts map[string]*contextRecord

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Watchdog from the watchdog subsystem's configuration.
func New(cfg config.WatchdogConfig, logger *zap.Logger) *Watchdog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watchdog{cfg: cfg, logger: logger, contexts: make(map[string]*contextRecord)}
}

// Track registers a new context (a target or job) for health scanning.
func (w *Watchdog) Track(id string, killer Killer) {
	maxFailures := w.cfg.MaxFailuresBeforePoison
	if maxFailures <= 0 {
		maxFailures = 3
	}
	cooldown := w.cfg.PoisonCooldown()
	if cooldown <= 0 {
		cooldown = 5 * time.Minute
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    id,
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
	})

	now := time.Now().UTC()
	w.mu.Lock()
	w.contexts[id] = &contextRecord{
		health: Health{LastHeartbeat: now, LastEvent: now, LastProgress: now, JobStarted: now},
		killer: killer,
		cb:     cb,
	}
	w.mu.Unlock()
}

// Untrack stops watching a context, e.g. after its job completes.
func (w *Watchdog) Untrack(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.contexts, id)
}

// Heartbeat, Event, and Progress record liveness signals for id.
func (w *Watchdog) Heartbeat(id string) { w.touch(id, func(h *Health) { h.LastHeartbeat = time.Now().UTC() }) }
func (w *Watchdog) Event(id string)     { w.touch(id, func(h *Health) { h.LastEvent = time.Now().UTC() }) }
func (w *Watchdog) Progress(id string)  { w.touch(id, func(h *Health) { h.LastProgress = time.Now().UTC() }) }

func (w *Watchdog) touch(id string, f func(*Health)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.contexts[id]; ok {
		f(&r.health)
	}
}

// HealthOf returns a snapshot of id's current health record.
func (w *Watchdog) HealthOf(id string) (Health, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.contexts[id]
	if !ok {
		return Health{}, false
	}
	h := r.health
	h.Poisoned = r.cb.State() == gobreaker.StateOpen
	return h, true
}

// IsPoisoned reports whether id is currently under its poison cooldown.
func (w *Watchdog) IsPoisoned(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.contexts[id]
	if !ok {
		return false
	}
	return r.cb.State() == gobreaker.StateOpen
}

// Start launches the one background scanner task. Call Stop to shut it
// down.
func (w *Watchdog) Start() {
	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.scanLoop()
}

// Stop signals the scanner to exit and waits for it.
func (w *Watchdog) Stop() {
	if w.stop == nil {
		return
	}
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
	w.wg.Wait()
}

func (w *Watchdog) scanLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.scanOnce()
		}
	}
}

func (w *Watchdog) scanOnce() {
	now := time.Now().UTC()
	heartbeatTO := orDefault(w.cfg.HeartbeatTimeout(), 5*time.Second)
	eventTO := orDefault(w.cfg.EventTimeout(), 15*time.Second)
	progressTO := orDefault(w.cfg.ProgressTimeout(), 30*time.Second)
	hardTO := orDefault(w.cfg.JobHardTimeout(), 10*time.Minute)

	w.mu.Lock()
	snapshot := make(map[string]*contextRecord, len(w.contexts))
	for id, r := range w.contexts {
		snapshot[id] = r
	}
	w.mu.Unlock()

	for id, r := range snapshot {
		w.mu.Lock()
		h := r.health
		w.mu.Unlock()

		killNeeded := false
		if now.Sub(h.LastHeartbeat) > heartbeatTO {
			w.setFlag(id, func(h *Health) { h.Unresponsive = true })
			killNeeded = true
		}
		if now.Sub(h.LastEvent) > eventTO {
			w.setFlag(id, func(h *Health) { h.Degraded = true })
		}
		if now.Sub(h.LastProgress) > progressTO {
			w.setFlag(id, func(h *Health) { h.Unresponsive = true })
			killNeeded = true
		}
		if now.Sub(h.JobStarted) > hardTO {
			w.setFlag(id, func(h *Health) { h.Dead = true })
			killNeeded = true
		}

		if killNeeded {
			w.recordFailureAndKill(id, r)
		}
	}
}

func (w *Watchdog) setFlag(id string, f func(*Health)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if r, ok := w.contexts[id]; ok {
		f(&r.health)
	}
}

func (w *Watchdog) recordFailureAndKill(id string, r *contextRecord) {
	_, _ = r.cb.Execute(func() (interface{}, error) {
		if r.killer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if !r.killer.Kill(ctx) {
				return nil, errKillFailed
			}
		}
		// The context failed a health check: count it toward the poison
		// threshold whether or not the kill handler succeeded.
		return nil, errContextFailed
	})
	w.logger.Warn("watchdog killed unresponsive context", zap.String("context_id", id))
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

var errKillFailed = killError{}

type killError struct{}

func (killError) Error() string { return "watchdog: kill handler reported failure" }

var errContextFailed = contextFailedError{}

type contextFailedError struct{}

func (contextFailedError) Error() string { return "watchdog: context failed a health check" }
