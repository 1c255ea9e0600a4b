// Package target implements the Target Manager (spec.md §4.3): the live
// inventory of tabs/workers/iframes, auto-attach bookkeeping, main-target
// promotion, and popup detection.
package target

import "time"

// Kind identifies the protocol target type.
type Kind string

// The target kinds the manager recognizes, matching DevTools'
// Target.TargetInfo.type values.
const (
	KindPage           Kind = "page"
	KindIframe         Kind = "iframe"
	KindServiceWorker  Kind = "service_worker"
	KindSharedWorker   Kind = "shared_worker"
	KindBackgroundPage Kind = "background_page"
	KindBrowser        Kind = "browser"
	KindOther          Kind = "other"
)

// Target is a protocol target: a page, iframe, worker, or the browser
// itself. Created on Target.targetCreated, mutated by
// Target.targetInfoChanged, Target.targetCrashed and auto-attach results,
// removed on Target.targetDestroyed (spec.md §3).
type Target struct {
	ID             string
	Kind           Kind
	URL            string
	LastKnownURL   string
	Title          string
	Attached       bool
	AttachedSession string
	OpenerID       string
	BrowserContextID string
	CreatedAt      time.Time
	IsMain         bool
}

// clone returns a value copy safe to hand to callers outside the manager's
// lock.
func (t *Target) clone() Target {
	if t == nil {
		return Target{}
	}
	return *t
}
