// Package recovery implements the multi-tier Recovery Manager (spec.md
// §4.9): classifying a failure reason into a recovery level, escalating
// through step-retry -> state-retry -> recreate-context -> restart-browser
// with per-level attempt budgets and backoff, and resolving safe reset
// points for state-level recovery.
package recovery

import "github.com/dev-console/browserctl/internal/reason"

// Level is one of the four ascending-severity recovery levels from
// spec.md §3.
type Level int

const (
	LevelNone Level = iota
	LevelStepRetry
	LevelStateRetry
	LevelRecreateContext
	LevelRestartBrowser
)

func (l Level) String() string {
	switch l {
	case LevelStepRetry:
		return "step-retry"
	case LevelStateRetry:
		return "state-retry"
	case LevelRecreateContext:
		return "recreate-context"
	case LevelRestartBrowser:
		return "restart-browser"
	default:
		return "none"
	}
}

// stepRetryable is the set of codes spec.md §4.9 classifies as step-retry.
var stepRetryable = map[reason.Code]bool{
	reason.TimeoutStep:         true,
	reason.NetworkTimeout:      true,
	reason.NetworkError:        true,
	reason.ElementNotFound:     true,
	reason.ElementNotClickable: true,
	reason.ElementCovered:      true,
	reason.CDPCommandFailed:    true,
}

// recreateContextCodes is the set classified as recreate-context.
var recreateContextCodes = map[reason.Code]bool{
	reason.TargetCrashed:    true,
	reason.TargetClosed:     true,
	reason.CDPDisconnected:  true,
	reason.ElementDetached:  true,
}

// restartBrowserCodes is the set classified as restart-browser.
var restartBrowserCodes = map[reason.Code]bool{
	reason.BrowserCrashed:     true,
	reason.BrowserHung:       true,
	reason.CDPReconnectFailed: true,
}

// noneCodes are validation/guard-rejection failures: never retried at any
// level, per spec.md §4.9.
var noneCodes = map[reason.Code]bool{
	reason.ValidationFailed: true,
	reason.GuardRejected:    true,
}

// Classify maps a failure reason's code to the level the recovery manager
// should attempt first. Any recoverable code not otherwise classified
// falls through to state-retry, per spec.md §4.9 ("anything else marked
// recoverable").
func Classify(r reason.Reason) Level {
	if noneCodes[r.Code] {
		return LevelNone
	}
	if restartBrowserCodes[r.Code] {
		return LevelRestartBrowser
	}
	if recreateContextCodes[r.Code] {
		return LevelRecreateContext
	}
	if stepRetryable[r.Code] {
		return LevelStepRetry
	}
	if r.Recoverable {
		return LevelStateRetry
	}
	return LevelNone
}

// next returns the next more severe level, or LevelNone if l is already
// the most severe (restart-browser exhausted).
func (l Level) next() Level {
	switch l {
	case LevelStepRetry:
		return LevelStateRetry
	case LevelStateRetry:
		return LevelRecreateContext
	case LevelRecreateContext:
		return LevelRestartBrowser
	default:
		return LevelNone
	}
}
