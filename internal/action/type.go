package action

import (
	"context"
	"time"

	"github.com/dev-console/browserctl/internal/locator"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wait"
	"github.com/dev-console/browserctl/internal/wire"
)

// TypeOptions configures Type.
type TypeOptions struct {
	Guard         Guard
	ClearFirst    bool
	Postcondition *Postcondition
}

// Type resolves l, waits for it to be enabled (no visibility check), then inserts
// text: a plain input gets its value set and input/change events
// dispatched; a contenteditable host gets focused and goes through the
// protocol's synthetic text-insertion command so editor frameworks observe
// the right events, per spec.md §4.6. The default postcondition (used when
// opts.Postcondition is nil) checks the typed text landed in the element's
// value or text.
func (e *Executor) Type(ctx context.Context, l locator.Locator, text string, opts TypeOptions) Result {
	resolve := e.resolveFunc(l)
	precondition := wait.ElementEnabled(e.sender, resolve)

	post := opts.Postcondition
	if post == nil {
		post = &Postcondition{Condition: valueTextCondition{sender: e.sender, resolve: resolve, expected: text}}
	}

	return e.run(ctx, opts.Guard, precondition,
		func(ctx context.Context) reason.Code { return classifyElementFailure(ctx, e.sender, resolve) },
		func(ctx context.Context) error { return e.dispatchType(ctx, resolve, text, opts.ClearFirst) },
		post,
	)
}

func (e *Executor) dispatchType(ctx context.Context, resolve wait.ResolveFunc, text string, clearFirst bool) error {
	objectID, err := resolve(ctx)
	if err != nil {
		return err
	}

	editable, err := isContentEditable(ctx, e.sender, objectID)
	if err != nil {
		return err
	}

	if !editable {
		_, err := callOnObject(ctx, e.sender, objectID, plainInputSetBody, text, clearFirst)
		return err
	}

	if _, err := callOnObject(ctx, e.sender, objectID, clearContentEditableBody, clearFirst); err != nil {
		return err
	}
	_, err = e.sender.Send(ctx, wire.MethodInputInsertText, map[string]interface{}{"text": text}, 5*time.Second)
	return err
}
