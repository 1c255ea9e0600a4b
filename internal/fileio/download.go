package fileio

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wire"
)

// DownloadRequest describes one tracked download triggered by a
// caller-supplied action (spec.md §4.8).
type DownloadRequest struct {
	// Trigger performs whatever page interaction starts the download
	// (typically a click resolved and dispatched by the action executor).
	Trigger func(ctx context.Context) error
	// ExpectedFilenameSubstring, if non-empty, is matched against the
	// completed download's suggested filename.
	ExpectedFilenameSubstring string
	// ExpectedChecksum, if non-empty, is the expected SHA-256 hex digest
	// of the completed file's content.
	ExpectedChecksum string
}

// DownloadResult reports the local path and verified size of a completed
// download.
type DownloadResult struct {
	Path     string
	SizeByte int64
	Checksum string
}

type setDownloadBehaviorParams struct {
	Behavior     string `json:"behavior"`
	DownloadPath string `json:"downloadPath,omitempty"`
}

type downloadWillBeginPayload struct {
	GUID              string `json:"guid"`
	SuggestedFilename string `json:"suggestedFilename"`
}

type downloadProgressPayload struct {
	GUID  string `json:"guid"`
	State string `json:"state"`
}

// Download enables the browser-level download behavior, runs the
// caller's trigger, waits for the matching download to complete, and
// verifies the resulting file's size is stable across consecutive
// samples (and optionally its checksum).
func (c *Component) Download(ctx context.Context, req DownloadRequest) (DownloadResult, reason.Reason) {
	if req.Trigger == nil {
		return DownloadResult{}, reason.New(reason.ValidationFailed, "download: no trigger action supplied")
	}
	if c.cfg.DownloadDir == "" {
		return DownloadResult{}, reason.New(reason.ValidationFailed, "download: no download directory configured")
	}

	_, err := c.sender.Send(ctx, wire.MethodPageSetDownloadBehavior, setDownloadBehaviorParams{
		Behavior: "allow", DownloadPath: c.cfg.DownloadDir,
	}, dispatchTimeout)
	if err != nil {
		return DownloadResult{}, reason.New(reason.DownloadFailed, fmt.Sprintf("download: setDownloadBehavior: %v", err))
	}

	budget := c.cfg.DownloadTimeout()
	if budget <= 0 {
		budget = 60 * time.Second
	}
	deadline := time.Now().Add(budget)

	beginCh := make(chan downloadWillBeginPayload, 1)
	unsubBegin := c.bus.Subscribe(eventbus.Kind(wire.EventPageDownloadWillBegin), eventbus.HandlerFunc(func(e eventbus.Event) {
		var p downloadWillBeginPayload
		if json.Unmarshal(e.Payload, &p) == nil {
			select {
			case beginCh <- p:
			default:
			}
		}
	}))
	defer unsubBegin()

	if err := req.Trigger(ctx); err != nil {
		return DownloadResult{}, reason.New(reason.DownloadFailed, fmt.Sprintf("download: trigger action: %v", err))
	}

	var guid, suggestedName string
	select {
	case p := <-beginCh:
		guid, suggestedName = p.GUID, p.SuggestedFilename
	case <-time.After(time.Until(deadline)):
		return DownloadResult{}, reason.New(reason.TimeoutStep, "download: no download-will-begin event observed")
	case <-ctx.Done():
		return DownloadResult{}, reason.New(reason.TimeoutStep, "download: cancelled waiting for download start")
	}

	if req.ExpectedFilenameSubstring != "" && !strings.Contains(suggestedName, req.ExpectedFilenameSubstring) {
		return DownloadResult{}, reason.New(reason.ValidationFailed,
			fmt.Sprintf("download: suggested filename %q does not contain %q", suggestedName, req.ExpectedFilenameSubstring))
	}

	_, ok := c.bus.Wait(ctx, eventbus.Kind(wire.EventPageDownloadProgress), time.Until(deadline), func(e eventbus.Event) bool {
		var p downloadProgressPayload
		if json.Unmarshal(e.Payload, &p) != nil {
			return false
		}
		return p.GUID == guid && p.State == "completed"
	})
	if !ok {
		return DownloadResult{}, reason.New(reason.TimeoutStep, "download: did not reach completed state within budget")
	}

	path := filepath.Join(c.cfg.DownloadDir, guid)
	if suggestedName != "" {
		path = filepath.Join(c.cfg.DownloadDir, suggestedName)
	}

	size, err := c.waitForSizeStability(ctx, path)
	if err != nil {
		return DownloadResult{}, reason.New(reason.DownloadFailed, fmt.Sprintf("download: size stability: %v", err))
	}

	result := DownloadResult{Path: path, SizeByte: size}
	if req.ExpectedChecksum != "" {
		sum, err := fileChecksum(path)
		if err != nil {
			return DownloadResult{}, reason.New(reason.DownloadFailed, fmt.Sprintf("download: checksum: %v", err))
		}
		if sum != req.ExpectedChecksum {
			return DownloadResult{}, reason.New(reason.ValidationFailed, "download: completed file does not match expected checksum").
				WithContext(map[string]interface{}{"expected": req.ExpectedChecksum, "actual": sum})
		}
		result.Checksum = sum
	}

	return result, reason.Successf("download completed")
}

// waitForSizeStability polls path's size at the configured interval,
// requiring the configured number of consecutive equal samples
// (default 3 samples at 500ms, spec.md §4.8).
func (c *Component) waitForSizeStability(ctx context.Context, path string) (int64, error) {
	samples := c.cfg.StabilitySamples
	if samples <= 0 {
		samples = 3
	}
	interval := c.cfg.StabilityInterval()
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	var lastSize int64 = -1
	consecutive := 0
	for {
		info, err := os.Stat(path)
		if err != nil {
			lastSize, consecutive = -1, 0
		} else {
			if info.Size() == lastSize {
				consecutive++
			} else {
				consecutive = 1
			}
			lastSize = info.Size()
		}

		if consecutive >= samples {
			return lastSize, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(interval):
		}
	}
}
