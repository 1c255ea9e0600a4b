package action

import (
	"context"
	"time"

	"github.com/dev-console/browserctl/internal/locator"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wait"
	"github.com/dev-console/browserctl/internal/wire"
)

// ClickOptions configures Click.
type ClickOptions struct {
	Guard         Guard
	Postcondition *Postcondition
}

// Click resolves l, waits for it to be visible and clickable, re-checks
// occlusion immediately before dispatch, and dispatches a synthetic
// mousePressed/mouseReleased pair at the element's center, per spec.md §4.6.
func (e *Executor) Click(ctx context.Context, l locator.Locator, opts ClickOptions) Result {
	resolve := e.resolveFunc(l)
	precondition := wait.ElementClickable(e.sender, resolve)

	return e.run(ctx, opts.Guard, precondition,
		func(ctx context.Context) reason.Code { return classifyElementFailure(ctx, e.sender, resolve) },
		func(ctx context.Context) error { return e.dispatchClick(ctx, resolve) },
		opts.Postcondition,
	)
}

func (e *Executor) dispatchClick(ctx context.Context, resolve wait.ResolveFunc) error {
	objectID, err := resolve(ctx)
	if err != nil {
		return err
	}

	clickable, err := wait.ElementClickable(e.sender, func(context.Context) (string, error) { return objectID, nil }).Evaluate(ctx)
	if err != nil {
		return err
	}
	if !clickable {
		return reason.New(reason.ElementCovered, "element is covered or no longer clickable at dispatch time")
	}

	c, err := elementCenter(ctx, e.sender, objectID)
	if err != nil {
		return err
	}

	if _, err := e.sender.Send(ctx, wire.MethodInputDispatchMouseEvent, map[string]interface{}{
		"type": "mousePressed", "x": c.X, "y": c.Y, "button": "left", "clickCount": 1,
	}, 5*time.Second); err != nil {
		return err
	}
	_, err = e.sender.Send(ctx, wire.MethodInputDispatchMouseEvent, map[string]interface{}{
		"type": "mouseReleased", "x": c.X, "y": c.Y, "button": "left", "clickCount": 1,
	}, 5*time.Second)
	return err
}
