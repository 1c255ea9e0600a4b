package fileio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wire"
)

// ChooserRequest describes one intercepted native file-chooser dialog
// (spec.md §4.8): a trigger opens the dialog, and the configured local
// paths are handed back through the protocol instead of a real OS dialog.
type ChooserRequest struct {
	Trigger func(ctx context.Context) error
	Paths   []string
}

type setInterceptFileChooserParams struct {
	Enabled bool `json:"enabled"`
}

type fileChooserOpenedPayload struct {
	Mode string `json:"mode"`
}

type handleFileChooserParams struct {
	Files []string `json:"files"`
}

// InterceptChooser enables file-chooser interception, runs the trigger,
// waits for Page.fileChooserOpened, and answers it with the configured
// paths via Page.handleFileChooserIntercept.
func (c *Component) InterceptChooser(ctx context.Context, req ChooserRequest) reason.Reason {
	if req.Trigger == nil {
		return reason.New(reason.ValidationFailed, "file chooser: no trigger action supplied")
	}
	if len(req.Paths) == 0 {
		return reason.New(reason.ValidationFailed, "file chooser: no file paths supplied")
	}

	resolved := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		abs, err := resolveUploadPath(p)
		if err != nil {
			return reason.New(reason.ValidationFailed, fmt.Sprintf("file chooser: %v", err))
		}
		resolved = append(resolved, abs)
	}

	if _, err := c.sender.Send(ctx, wire.MethodPageSetInterceptFileChooser, setInterceptFileChooserParams{Enabled: true}, dispatchTimeout); err != nil {
		return reason.New(reason.UploadFailed, fmt.Sprintf("file chooser: setInterceptFileChooserDialog: %v", err))
	}

	budget := c.cfg.FileChooserTimeout()
	if budget <= 0 {
		budget = 5 * time.Second
	}

	openedCh := make(chan struct{}, 1)
	unsub := c.bus.SubscribeOnce(eventbus.Kind(wire.EventPageFileChooserOpened), eventbus.HandlerFunc(func(e eventbus.Event) {
		var p fileChooserOpenedPayload
		_ = json.Unmarshal(e.Payload, &p)
		select {
		case openedCh <- struct{}{}:
		default:
		}
	}))
	defer unsub()

	if err := req.Trigger(ctx); err != nil {
		return reason.New(reason.UploadFailed, fmt.Sprintf("file chooser: trigger action: %v", err))
	}

	select {
	case <-openedCh:
	case <-time.After(budget):
		return reason.New(reason.TimeoutStep, "file chooser: no fileChooserOpened event observed")
	case <-ctx.Done():
		return reason.New(reason.TimeoutStep, "file chooser: cancelled waiting for dialog")
	}

	if _, err := c.sender.Send(ctx, wire.MethodPageHandleFileChooser, handleFileChooserParams{Files: resolved}, dispatchTimeout); err != nil {
		return reason.New(reason.UploadFailed, fmt.Sprintf("file chooser: handleFileChooserIntercept: %v", err))
	}

	return reason.Successf("file chooser handled")
}
