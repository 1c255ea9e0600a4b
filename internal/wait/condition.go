// Package wait implements deterministic polling with a stability window:
// a condition must hold continuously for a configured duration before it
// is declared met, across three nested timeout tiers (step < state < job),
// per spec.md §4.4.
package wait

import "context"

// Condition is evaluated repeatedly by Engine.Wait. An error is treated
// the same as a false result: it resets the stability timer rather than
// aborting the wait, since most condition kinds read ordinary transient
// page state (a nonexistent element is not a hard failure, just "not yet").
type Condition interface {
	Evaluate(ctx context.Context) (bool, error)
}

// ConditionFunc adapts a plain function to Condition, for *custom*
// caller-supplied predicates (spec.md §4.4, kind "custom").
type ConditionFunc func(ctx context.Context) (bool, error)

// Evaluate implements Condition.
func (f ConditionFunc) Evaluate(ctx context.Context) (bool, error) { return f(ctx) }

// Tier selects which of the three nested timeout defaults applies when the
// caller does not supply an explicit override.
type Tier int

const (
	TierStep Tier = iota
	TierState
	TierJob
)
