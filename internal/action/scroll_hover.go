package action

import (
	"context"
	"time"

	"github.com/dev-console/browserctl/internal/locator"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wait"
	"github.com/dev-console/browserctl/internal/wire"
)

const scrollIntoViewBody = `function(){ this.scrollIntoView({behavior: 'smooth', block: 'center', inline: 'center'}); }`

// scrollAnimationWait is how long ScrollTo pauses after requesting a smooth
// scroll, per spec.md §4.6 ("waits briefly for animation").
const scrollAnimationWait = 300 * time.Millisecond

// ScrollOptions configures ScrollTo.
type ScrollOptions struct {
	Guard         Guard
	Postcondition *Postcondition
}

// ScrollTo resolves l, waits for it to exist, requests a smooth centered
// scrollIntoView, and waits briefly for the scroll animation to settle.
func (e *Executor) ScrollTo(ctx context.Context, l locator.Locator, opts ScrollOptions) Result {
	resolve := e.resolveFunc(l)
	precondition := wait.ElementExists(e.sender, resolve)

	return e.run(ctx, opts.Guard, precondition,
		func(ctx context.Context) reason.Code { return classifyElementFailure(ctx, e.sender, resolve) },
		func(ctx context.Context) error {
			objectID, err := resolve(ctx)
			if err != nil {
				return err
			}
			if _, err := callOnObject(ctx, e.sender, objectID, scrollIntoViewBody); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(scrollAnimationWait):
				return nil
			}
		},
		opts.Postcondition,
	)
}

// HoverOptions configures Hover.
type HoverOptions struct {
	Guard         Guard
	Postcondition *Postcondition
}

// Hover resolves l, waits for it to be visible, computes its center
// in-page, and dispatches a synthetic mouseMoved at those coordinates.
func (e *Executor) Hover(ctx context.Context, l locator.Locator, opts HoverOptions) Result {
	resolve := e.resolveFunc(l)
	precondition := wait.ElementVisible(e.sender, resolve)

	return e.run(ctx, opts.Guard, precondition,
		func(ctx context.Context) reason.Code { return classifyElementFailure(ctx, e.sender, resolve) },
		func(ctx context.Context) error {
			objectID, err := resolve(ctx)
			if err != nil {
				return err
			}
			c, err := elementCenter(ctx, e.sender, objectID)
			if err != nil {
				return err
			}
			_, err = e.sender.Send(ctx, wire.MethodInputDispatchMouseEvent, map[string]interface{}{
				"type": "mouseMoved", "x": c.X, "y": c.Y,
			}, 5*time.Second)
			return err
		},
		opts.Postcondition,
	)
}
