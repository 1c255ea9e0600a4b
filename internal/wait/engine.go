package wait

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/session"
)

// Sender is the narrow subset of *session.Session the wait engine and its
// condition builders need to evaluate page state.
type Sender interface {
	Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error)
}

// Engine polls a Condition until it has held continuously for the
// configured stability window, bounded by one of the three timeout tiers.
type Engine struct {
	cfg    config.WaitConfig
	logger *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds an Engine from the wait subsystem's configuration.
func New(cfg config.WaitConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger, rng: rand.New(rand.NewSource(1))}
}

func (e *Engine) timeoutFor(tier Tier, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	switch tier {
	case TierState:
		return e.cfg.StateTimeout()
	case TierJob:
		return e.cfg.JobTimeout()
	default:
		return e.cfg.StepTimeout()
	}
}

func codeForTier(tier Tier) reason.Code {
	switch tier {
	case TierState:
		return reason.TimeoutState
	case TierJob:
		return reason.TimeoutJob
	default:
		return reason.TimeoutStep
	}
}

// jitteredInterval returns base scaled by a random factor in [0.8, 1.2), to
// keep concurrent pollers from synchronizing (spec.md §4.4, "±20% jitter").
// Guarded by rngMu: one Engine is shared across every concurrently
// scheduled job (spec.md §5, "worker tasks own one job each"), and
// *rand.Rand is not safe for concurrent use on its own.
func (e *Engine) jitteredInterval(base time.Duration) time.Duration {
	e.rngMu.Lock()
	factor := 0.8 + e.rng.Float64()*0.4
	e.rngMu.Unlock()
	return time.Duration(float64(base) * factor)
}

// Wait polls cond until it has been continuously true for the configured
// stability window, or returns a timeout reason for tier once the deadline
// (or an explicit override) elapses. An error from cond.Evaluate counts as
// "not yet" and resets the stability timer, per spec.md §4.4 ("Any error or
// transition to false resets the stability timer").
func (e *Engine) Wait(ctx context.Context, cond Condition, tier Tier, timeoutOverride time.Duration) reason.Reason {
	timeout := e.timeoutFor(tier, timeoutOverride)
	deadline := time.Now().Add(timeout)
	var stableSince time.Time
	pollInterval := e.cfg.PollInterval()
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}
	stabilityWindow := e.cfg.StabilityWindow()

	for {
		ok, err := cond.Evaluate(ctx)
		if err != nil || !ok {
			stableSince = time.Time{}
		} else {
			if stableSince.IsZero() {
				stableSince = time.Now()
			}
			if time.Since(stableSince) >= stabilityWindow {
				return reason.Successf("condition met and stable")
			}
		}

		if time.Now().After(deadline) {
			return reason.New(codeForTier(tier), fmt.Sprintf("condition not met within %s", timeout))
		}

		select {
		case <-ctx.Done():
			return reason.New(codeForTier(tier), "wait cancelled: "+ctx.Err().Error())
		case <-time.After(e.jitteredInterval(pollInterval)):
		}
	}
}
