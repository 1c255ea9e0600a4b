package recovery

import "context"

// Verifier reports whether a named safe reset point's state currently
// holds, so state-retry can resume there without loss of correctness
// (spec.md §3).
type Verifier interface {
	Verify(ctx context.Context) (bool, error)
}

// VerifierFunc adapts a plain function to Verifier.
type VerifierFunc func(ctx context.Context) (bool, error)

// Verify implements Verifier.
func (f VerifierFunc) Verify(ctx context.Context) (bool, error) { return f(ctx) }

// Setup is the optional routine that re-establishes a reset point's state
// when its Verifier reports false.
type Setup interface {
	Run(ctx context.Context) error
}

// SetupFunc adapts a plain function to Setup.
type SetupFunc func(ctx context.Context) error

// Run implements Setup.
func (f SetupFunc) Run(ctx context.Context) error { return f(ctx) }

// SafeResetPoint is a named location a state-retry can resume from
// (spec.md §3).
type SafeResetPoint struct {
	Name       string
	StateLabel string
	Verifier   Verifier
	Setup      Setup
}
