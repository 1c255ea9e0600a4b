package fileio

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wire"
)

// UploadRequest describes one protocol-driven file-input upload.
type UploadRequest struct {
	// InputObjectID is the remote object id of the file input element,
	// already resolved by the selector engine.
	InputObjectID string
	// Paths are the local file paths to attach, in order.
	Paths []string
	// ExpectedChecksum, if non-empty, is the expected SHA-256 hex digest
	// of Paths[0]'s content. Verified before the files are dispatched
	// (supplemented from original_source/automation/cdp_max/file_io.py,
	// which checks this before considering upload-preview successful).
	ExpectedChecksum string
	// VerifyPreview requests polling for a known preview-element pattern
	// after dispatch.
	VerifyPreview bool
}

type setFileInputFilesParams struct {
	Files    []string `json:"files"`
	ObjectID string   `json:"objectId,omitempty"`
}

// Upload resolves req's local files, optionally checksum-verifies the
// first one, dispatches them to the input via DOM.setFileInputFiles, fires
// a synthetic change event, and optionally polls for a preview element
// (spec.md §4.8).
func (c *Component) Upload(ctx context.Context, req UploadRequest) reason.Reason {
	if req.InputObjectID == "" {
		return reason.New(reason.ValidationFailed, "upload: missing resolved file input object id")
	}
	if len(req.Paths) == 0 {
		return reason.New(reason.ValidationFailed, "upload: no file paths supplied")
	}

	resolved := make([]string, 0, len(req.Paths))
	for _, p := range req.Paths {
		abs, err := resolveUploadPath(p)
		if err != nil {
			return reason.New(reason.ValidationFailed, fmt.Sprintf("upload: %v", err)).
				WithContext(map[string]interface{}{"path": p})
		}
		resolved = append(resolved, abs)
	}

	if req.ExpectedChecksum != "" {
		sum, err := fileChecksum(resolved[0])
		if err != nil {
			return reason.New(reason.ValidationFailed, fmt.Sprintf("upload: checksum: %v", err))
		}
		if sum != req.ExpectedChecksum {
			return reason.New(reason.ValidationFailed, "upload: file content does not match expected checksum").
				WithContext(map[string]interface{}{"expected": req.ExpectedChecksum, "actual": sum}).
				WithSuggestion("verify the correct local file is being uploaded before retrying")
		}
	}

	_, err := c.sender.Send(ctx, wire.MethodDOMSetFileInputFiles, setFileInputFilesParams{
		Files: resolved, ObjectID: req.InputObjectID,
	}, dispatchTimeout)
	if err != nil {
		return reason.New(reason.UploadFailed, fmt.Sprintf("upload: setFileInputFiles: %v", err))
	}

	if _, err := c.evalBoolOnObject(ctx, req.InputObjectID, dispatchChangeEventBody); err != nil {
		return reason.New(reason.UploadFailed, fmt.Sprintf("upload: dispatch change event: %v", err))
	}

	if req.VerifyPreview {
		ok, err := c.pollForPreview(ctx)
		if err != nil {
			return reason.New(reason.UploadFailed, fmt.Sprintf("upload: preview poll: %v", err))
		}
		if !ok {
			return reason.New(reason.TimeoutStep, "upload: no preview element appeared within budget")
		}
	}

	return reason.Successf("upload dispatched")
}

const dispatchChangeEventBody = `function(){ this.dispatchEvent(new Event('change', {bubbles:true})); return true; }`

const previewSelectorsPresentBody = `function(selectors){
	for (const s of selectors) {
		if (this.ownerDocument.querySelector(s)) return true;
	}
	return false;
}`

func (c *Component) pollForPreview(ctx context.Context) (bool, error) {
	budget := c.cfg.UploadPreviewTimeout()
	if budget <= 0 {
		budget = 5 * time.Second
	}
	selectors := c.cfg.PreviewSelectors
	if len(selectors) == 0 {
		selectors = []string{"img[src^=\"blob:\"]", "img[src^=\"data:\"]", ".preview"}
	}

	deadline := time.Now().Add(budget)
	for {
		objectID, err := c.documentElementObjectID(ctx)
		if err != nil {
			return false, err
		}
		found, err := c.evalBoolOnObject(ctx, objectID, previewSelectorsPresentBody, selectors)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

func (c *Component) documentElementObjectID(ctx context.Context) (string, error) {
	res, err := c.sender.Send(ctx, wire.MethodRuntimeEvaluate, map[string]interface{}{
		"expression": "document.documentElement", "returnByValue": false,
	}, evalTimeout)
	if err != nil {
		return "", err
	}
	var rr struct {
		Result struct {
			ObjectID string `json:"objectId"`
		} `json:"result"`
	}
	if err := decodeResult(res.Result, &rr); err != nil {
		return "", err
	}
	if rr.Result.ObjectID == "" {
		return "", fmt.Errorf("fileio: documentElement returned no object id")
	}
	return rr.Result.ObjectID, nil
}

// resolveUploadPath validates and resolves a local file path: it must
// exist, not be a directory, and resolve through symlinks without
// escaping to something unreadable (TOCTOU-safe stat-then-open ordering
// left to the caller's environment; this guard mirrors the teacher's
// Clean -> Stat -> EvalSymlinks chain in internal/upload/security.go).
func resolveUploadPath(p string) (string, error) {
	clean := filepath.Clean(p)
	info, err := os.Stat(clean)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", clean, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not a file", clean)
	}
	resolved, err := filepath.EvalSymlinks(clean)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks for %s: %w", clean, err)
	}
	return resolved, nil
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

const dispatchTimeout = 10 * time.Second
