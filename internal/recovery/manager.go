package recovery

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/trace"
)

// Killer is the capability a recreate-context or restart-browser level
// invokes to dispose of the broken context before retrying (spec.md §9
// Design Note: explicit capability interface rather than a duck-typed
// closure).
type Killer interface {
	Kill(ctx context.Context) bool
}

// KillerFunc adapts a plain function to Killer.
type KillerFunc func(ctx context.Context) bool

// Kill implements Killer.
func (f KillerFunc) Kill(ctx context.Context) bool { return f(ctx) }

// multiplicativeBackoff implements retry.Backoff with a configurable
// multiplier, used for the step-retry tier so spec.md's
// step_retry_backoff configuration value is honored exactly (go-retry's
// built-in NewExponential always doubles).
type multiplicativeBackoff struct {
	next       time.Duration
	multiplier float64
}

func (b *multiplicativeBackoff) Next() (time.Duration, bool) {
	cur := b.next
	b.next = time.Duration(float64(b.next) * b.multiplier)
	return cur, false
}

// Manager escalates a failed operation through the recovery levels,
// recording every attempt on the supplied job trace.
type Manager struct {
	cfg         config.RecoveryConfig
	logger      *zap.Logger
	resetPoints []SafeResetPoint
	killers     map[Level]Killer
}

// New builds a Manager from the recovery subsystem's configuration.
func New(cfg config.RecoveryConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger, killers: make(map[Level]Killer)}
}

// RegisterResetPoint adds a named safe reset point consulted by
// state-retry, in registration order.
func (m *Manager) RegisterResetPoint(p SafeResetPoint) {
	m.resetPoints = append(m.resetPoints, p)
}

// RegisterKiller binds the kill handler invoked when level is reached.
// Only LevelRecreateContext and LevelRestartBrowser consult a killer.
func (m *Manager) RegisterKiller(level Level, k Killer) {
	m.killers[level] = k
}

// Escalate attempts to recover from failure by running retryFn at the
// classified level, escalating to progressively more severe levels on
// exhaustion until restart-browser itself is exhausted (spec.md §4.9).
// retryFn re-performs whatever operation originally produced failure.
func (m *Manager) Escalate(ctx context.Context, jt *trace.JobTrace, failure reason.Reason, retryFn func(ctx context.Context) error) reason.Reason {
	level := Classify(failure)
	if level == LevelNone {
		return failure
	}

	current := failure
	for level != LevelNone {
		ok, final := m.attemptLevel(ctx, jt, level, retryFn)
		if ok {
			return reason.Successf("recovered at " + level.String())
		}
		current = final
		level = level.next()
	}
	return current
}

func (m *Manager) attemptLevel(ctx context.Context, jt *trace.JobTrace, level Level, retryFn func(ctx context.Context) error) (bool, reason.Reason) {
	switch level {
	case LevelStepRetry:
		return m.stepRetry(ctx, jt, retryFn)
	case LevelStateRetry:
		return m.stateRetry(ctx, jt, retryFn)
	case LevelRecreateContext:
		return m.recreateContext(ctx, jt, retryFn)
	case LevelRestartBrowser:
		return m.restartBrowser(ctx, jt, retryFn)
	default:
		return false, reason.New(reason.ValidationFailed, "unknown recovery level")
	}
}

func (m *Manager) stepRetry(ctx context.Context, jt *trace.JobTrace, retryFn func(ctx context.Context) error) (bool, reason.Reason) {
	maxRetries := m.cfg.MaxStepRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	multiplier := m.cfg.StepRetryBackoff
	if multiplier <= 0 {
		multiplier = 2.0
	}
	backoff := retry.WithMaxRetries(uint64(maxRetries), &multiplicativeBackoff{
		next: m.cfg.StepRetryDelay(), multiplier: multiplier,
	})

	var last error
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := retryFn(ctx); err != nil {
			last = err
			jt.AddRecovery("step-retry", false, reason.CDPCommandFailed)
			return retry.RetryableError(err)
		}
		jt.AddRecovery("step-retry", true, reason.Success)
		return nil
	})
	if err == nil {
		return true, reason.Successf("step-retry succeeded")
	}
	msg := "step-retry exhausted"
	if last != nil {
		msg = last.Error()
	}
	return false, reason.New(reason.RetryStep, msg)
}

func (m *Manager) stateRetry(ctx context.Context, jt *trace.JobTrace, retryFn func(ctx context.Context) error) (bool, reason.Reason) {
	maxRetries := m.cfg.MaxStateRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	delay := m.cfg.StateRetryDelay()

	for attempt := 0; attempt < maxRetries; attempt++ {
		resumed := m.resumeFromResetPoint(ctx)
		if !resumed {
			jt.AddRecovery("state-retry", false, reason.RetryState)
			if delay > 0 {
				time.Sleep(delay)
			}
			continue
		}
		if err := retryFn(ctx); err != nil {
			jt.AddRecovery("state-retry", false, reason.RetryState)
			if delay > 0 {
				time.Sleep(delay)
			}
			continue
		}
		jt.AddRecovery("state-retry", true, reason.Success)
		return true, reason.Successf("state-retry succeeded")
	}
	return false, reason.New(reason.RetryState, "state-retry exhausted")
}

// resumeFromResetPoint finds the first verified reset point; failing
// that, it invokes the first point's setup routine, per spec.md §4.9.
func (m *Manager) resumeFromResetPoint(ctx context.Context) bool {
	if len(m.resetPoints) == 0 {
		return true
	}
	for _, p := range m.resetPoints {
		if p.Verifier == nil {
			continue
		}
		if ok, err := p.Verifier.Verify(ctx); err == nil && ok {
			return true
		}
	}
	first := m.resetPoints[0]
	if first.Setup == nil {
		return false
	}
	return first.Setup.Run(ctx) == nil
}

func (m *Manager) recreateContext(ctx context.Context, jt *trace.JobTrace, retryFn func(ctx context.Context) error) (bool, reason.Reason) {
	return m.killAndRetry(ctx, jt, LevelRecreateContext, m.cfg.MaxRecreateAttempts, m.cfg.RecreateDelay(), retryFn, reason.RecreateContext)
}

func (m *Manager) restartBrowser(ctx context.Context, jt *trace.JobTrace, retryFn func(ctx context.Context) error) (bool, reason.Reason) {
	return m.killAndRetry(ctx, jt, LevelRestartBrowser, m.cfg.MaxRestartAttempts, m.cfg.RestartDelay(), retryFn, reason.RestartBrowser)
}

func (m *Manager) killAndRetry(ctx context.Context, jt *trace.JobTrace, level Level, maxAttempts int, delay time.Duration, retryFn func(ctx context.Context) error, failCode reason.Code) (bool, reason.Reason) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	killer := m.killers[level]

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if killer != nil {
			if !killer.Kill(ctx) {
				jt.AddRecovery(level.String(), false, failCode)
				if delay > 0 {
					time.Sleep(delay)
				}
				continue
			}
		}
		if err := retryFn(ctx); err != nil {
			jt.AddRecovery(level.String(), false, failCode)
			if delay > 0 {
				time.Sleep(delay)
			}
			continue
		}
		jt.AddRecovery(level.String(), true, reason.Success)
		return true, reason.Successf(level.String() + " succeeded")
	}
	m.logger.Error("recovery level exhausted", zap.String("level", level.String()))
	return false, reason.New(failCode, level.String()+" exhausted")
}
