package perf

import (
	"sync"

	"github.com/dev-console/browserctl/internal/config"
)

// TriggerKind identifies why a screenshot was requested.
type TriggerKind string

const (
	TriggerError       TriggerKind = "error"
	TriggerStateChange TriggerKind = "state-change"
	TriggerManual      TriggerKind = "manual"
)

// ScreenshotBudget enforces a per-job screenshot ceiling and a per-trigger
// enable/disable policy (spec.md §4.12). One instance is scoped to a
// single job; Client.NewScreenshotBudget builds a fresh one per call.
type ScreenshotBudget struct {
	policy config.ScreenshotPolicy

	mu      sync.Mutex
	taken   int
	skipped int
}

// NewScreenshotBudget builds a ScreenshotBudget from the configured
// screenshot policy.
func NewScreenshotBudget(policy config.ScreenshotPolicy) *ScreenshotBudget {
	return &ScreenshotBudget{policy: policy}
}

// Allow reports whether a screenshot of the given trigger kind may be
// taken right now, and records the outcome either as "taken" or
// "skipped"; Taken and Skipped read those counts.
func (b *ScreenshotBudget) Allow(trigger TriggerKind) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.policy.Enabled {
		b.skipped++
		return false
	}
	if !b.triggerEnabledLocked(trigger) {
		b.skipped++
		return false
	}
	if b.taken >= b.policy.MaxPerJob {
		b.skipped++
		return false
	}

	b.taken++
	return true
}

func (b *ScreenshotBudget) triggerEnabledLocked(trigger TriggerKind) bool {
	switch trigger {
	case TriggerError:
		return b.policy.OnError
	case TriggerStateChange:
		return b.policy.OnStateChange
	case TriggerManual:
		return true
	default:
		return false
	}
}

// Taken and Skipped report the running counters for this job. Nothing
// copies them onto the job trace.
func (b *ScreenshotBudget) Taken() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.taken
}

func (b *ScreenshotBudget) Skipped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.skipped
}
