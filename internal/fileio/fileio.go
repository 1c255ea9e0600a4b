// Package fileio implements the File I/O component (spec.md §4.8):
// protocol-driven file-input uploads with checksum and preview
// verification, download tracking with size-stability, and file-chooser
// interception. Grounded on the teacher's internal/upload package
// (form_submit.go, security.go, validators.go) — the closest domain match
// in the example pack for a browser-facing file transfer surface.
package fileio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/wire"
)

// Sender is the narrow subset of *session.Session this component needs.
type Sender interface {
	Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error)
}

// Component wires the configured file I/O policy to a protocol sender and
// event bus.
type Component struct {
	cfg    config.FileIOConfig
	sender Sender
	bus    *eventbus.Bus
	logger *zap.Logger
}

// New builds a Component.
func New(cfg config.FileIOConfig, sender Sender, bus *eventbus.Bus, logger *zap.Logger) *Component {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Component{cfg: cfg, sender: sender, bus: bus, logger: logger}
}

type runtimeResult struct {
	Result struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails,omitempty"`
}

func (c *Component) evalBoolOnObject(ctx context.Context, objectID, body string, args ...interface{}) (bool, error) {
	params := wire.NewCallFunctionOn(body, args...).OnObject(objectID)
	res, err := c.sender.Send(ctx, wire.MethodRuntimeCallFunctionOn, params, evalTimeout)
	if err != nil {
		return false, err
	}
	var rr runtimeResult
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		return false, fmt.Errorf("fileio: decode callFunctionOn result: %w", err)
	}
	if rr.ExceptionDetails != nil {
		return false, fmt.Errorf("fileio: page evaluation threw: %s", rr.ExceptionDetails.Text)
	}
	var v bool
	if err := json.Unmarshal(rr.Result.Value, &v); err != nil {
		return false, fmt.Errorf("fileio: expected bool result: %w", err)
	}
	return v, nil
}

const evalTimeout = 5 * time.Second

func decodeResult(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("fileio: decode result: %w", err)
	}
	return nil
}
