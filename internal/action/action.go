// Package action implements the Action Executor (spec.md §4.6): every
// action runs idempotency guard -> precondition -> execute -> postcondition,
// resolving its target through the locator engine and waiting through the
// wait engine.
package action

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/locator"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/wait"
)

// Sender is the narrow subset of *session.Session the executor needs to
// dispatch protocol commands.
type Sender interface {
	Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error)
}

// Resolver resolves a Locator into a remote object id; satisfied by
// *locator.Engine.
type Resolver interface {
	Resolve(ctx context.Context, l locator.Locator) (string, error)
}

// Guard is the idempotency predicate: when it reports true, the action is
// already in its target state and performs no protocol commands.
type Guard func(ctx context.Context) (bool, error)

// Postcondition pairs a condition with the timeout it must hold under.
// A zero Timeout uses the wait engine's step-tier default.
type Postcondition struct {
	Condition wait.Condition
	Timeout   time.Duration
}

// Result is the outcome of one action.
type Result struct {
	Reason reason.Reason
}

// Success reports whether Result represents success or a skipped-idempotent
// short-circuit.
func (r Result) Success() bool { return r.Reason.IsSuccess() }

// Executor runs the four-phase action contract against one session.
type Executor struct {
	sender   Sender
	resolver Resolver
	wait     *wait.Engine
	logger   *zap.Logger
}

// New builds an Executor.
func New(sender Sender, resolver Resolver, waitEngine *wait.Engine, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{sender: sender, resolver: resolver, wait: waitEngine, logger: logger}
}

func (e *Executor) resolveFunc(l locator.Locator) wait.ResolveFunc {
	return func(ctx context.Context) (string, error) { return e.resolver.Resolve(ctx, l) }
}

// run is the shared four-phase contract every action method funnels
// through. precondition and classifyFailure may be nil (no condition);
// post is optional.
func (e *Executor) run(
	ctx context.Context,
	guard Guard,
	precondition wait.Condition,
	classifyFailure func(ctx context.Context) reason.Code,
	execute func(ctx context.Context) error,
	post *Postcondition,
) Result {
	if guard != nil {
		done, err := guard(ctx)
		if err == nil && done {
			return Result{Reason: reason.SkippedIdempotentf("idempotency guard already satisfied")}
		}
	}

	if precondition != nil {
		r := e.wait.Wait(ctx, precondition, wait.TierStep, 0)
		if !r.IsSuccess() {
			code := reason.PreconditionFailed
			if classifyFailure != nil {
				code = classifyFailure(ctx)
			}
			return Result{Reason: reason.New(code, r.Message).WithContext(map[string]interface{}{"underlying_code": string(r.Code)})}
		}
	}

	if err := execute(ctx); err != nil {
		var r reason.Reason
		if errors.As(err, &r) {
			return Result{Reason: r}
		}
		return Result{Reason: reason.New(reason.CDPCommandFailed, err.Error())}
	}

	if post != nil && post.Condition != nil {
		r := e.wait.Wait(ctx, post.Condition, wait.TierStep, post.Timeout)
		if !r.IsSuccess() {
			return Result{Reason: reason.New(reason.PostconditionFailed, r.Message).WithContext(map[string]interface{}{"underlying_code": string(r.Code)})}
		}
	}

	return Result{Reason: reason.Successf("action completed")}
}

// classifyElementFailure re-checks resolve/visible/enabled individually to
// pick the most specific element-level code for a failed precondition,
// per spec.md §4.6 ("the element-level reason code").
func classifyElementFailure(ctx context.Context, sender Sender, resolve wait.ResolveFunc) reason.Code {
	objectID, err := resolve(ctx)
	if err != nil {
		return reason.ElementNotFound
	}
	visible, _ := wait.ElementVisible(sender, func(context.Context) (string, error) { return objectID, nil }).Evaluate(ctx)
	if !visible {
		return reason.ElementNotVisible
	}
	enabled, _ := wait.ElementEnabled(sender, func(context.Context) (string, error) { return objectID, nil }).Evaluate(ctx)
	if !enabled {
		return reason.ElementNotClickable
	}
	return reason.ElementCovered
}
