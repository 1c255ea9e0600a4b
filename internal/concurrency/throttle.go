package concurrency

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/dev-console/browserctl/internal/config"
)

const (
	latencyGrowThreshold   = 100 * time.Millisecond
	latencyShrinkThreshold = 500 * time.Millisecond
	growFactor             = 1.1
	shrinkFactor           = 0.8
	minMultiplier          = 0.1
	maxMultiplier          = 2.0
)

// Throttle caps outbound protocol commands with a rolling one-second rate
// limit, a concurrent-command semaphore, and an adaptive multiplier that
// shrinks the effective rate when rolling average latency climbs above
// 500ms and grows it back when latency falls below 100ms (spec.md §4.11).
type Throttle struct {
	baseRate float64
	limiter  *rate.Limiter
	sem      *semaphore.Weighted

	mu         sync.Mutex
	multiplier float64
	avgLatency time.Duration
}

// NewThrottle builds a Throttle from the concurrency subsystem's
// configuration.
func NewThrottle(cfg config.ConcurrencyConfig) *Throttle {
	baseRate := cfg.ThrottleRatePerSecond
	if baseRate <= 0 {
		baseRate = 50
	}
	concurrency := cfg.ThrottleConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Throttle{
		baseRate:   baseRate,
		limiter:    rate.NewLimiter(rate.Limit(baseRate), int(baseRate)),
		sem:        semaphore.NewWeighted(int64(concurrency)),
		multiplier: 1.0,
	}
}

// Acquire blocks until both the concurrency semaphore and the rate
// limiter admit one command, or ctx is done.
func (t *Throttle) Acquire(ctx context.Context) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		t.sem.Release(1)
		return err
	}
	return nil
}

// Release frees the concurrency slot acquired by Acquire.
func (t *Throttle) Release() { t.sem.Release(1) }

// Observe records one completed command's latency, adjusting the
// adaptive multiplier and the limiter's effective rate.
func (t *Throttle) Observe(latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.avgLatency == 0 {
		t.avgLatency = latency
	} else {
		// Exponentially weighted rolling average, alpha = 0.2.
		t.avgLatency = time.Duration(0.8*float64(t.avgLatency) + 0.2*float64(latency))
	}

	switch {
	case t.avgLatency > latencyShrinkThreshold:
		t.multiplier *= shrinkFactor
	case t.avgLatency < latencyGrowThreshold:
		t.multiplier *= growFactor
	}
	if t.multiplier < minMultiplier {
		t.multiplier = minMultiplier
	}
	if t.multiplier > maxMultiplier {
		t.multiplier = maxMultiplier
	}

	t.limiter.SetLimit(rate.Limit(t.baseRate * t.multiplier))
}

// Multiplier returns the current adaptive multiplier, for diagnostics.
func (t *Throttle) Multiplier() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.multiplier
}
