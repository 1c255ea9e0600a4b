// Package navigation implements the Navigation Manager (spec.md §4.7):
// full-document navigation with wait-until tiers and redirect-loop
// detection, SPA route-change waiting with heuristic app detection, and
// the unexpected-page (interstitial) detector.
package navigation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/wait"
)

// Sender is the narrow subset of *session.Session the manager needs.
type Sender interface {
	Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error)
}

// WaitUntil selects how long Navigate waits before returning, per
// spec.md §4.7.
type WaitUntil int

const (
	WaitCommit WaitUntil = iota
	WaitDOMContentLoaded
	WaitLoad
	WaitNetworkIdle
)

// Result is the outcome of a navigation operation.
type Result struct {
	Reason reason.Reason
}

// Success reports whether the navigation completed successfully.
func (r Result) Success() bool { return r.Reason.IsSuccess() }

// Manager tracks navigation state for one target: the redirect-loop
// counter lives per-call, but SPA detection is cached across calls.
type Manager struct {
	sender Sender
	bus    *eventbus.Bus
	wait   *wait.Engine
	logger *zap.Logger
	cfg    config.NavigationConfig

	spaMu       sync.Mutex
	spaDetected *bool
}

// New builds a Manager from the navigation subsystem's configuration.
func New(sender Sender, bus *eventbus.Bus, waitEngine *wait.Engine, logger *zap.Logger, cfg config.NavigationConfig) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RedirectCeiling <= 0 {
		cfg.RedirectCeiling = 10
	}
	if cfg.DefaultTimeoutMS <= 0 {
		cfg.DefaultTimeoutMS = 30000
	}
	return &Manager{sender: sender, bus: bus, wait: waitEngine, logger: logger, cfg: cfg}
}

func remaining(ctx context.Context, fallback time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
