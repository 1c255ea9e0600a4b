package fileio

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/session"
)

type fakeSender struct {
	responses map[string]json.RawMessage
	calls     []string
}

func (f *fakeSender) Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error) {
	f.calls = append(f.calls, method)
	if raw, ok := f.responses[method]; ok {
		return session.CommandResult{Result: raw}, nil
	}
	return session.CommandResult{Result: json.RawMessage(`{}`)}, nil
}

func newTestComponent(t *testing.T, sender Sender) (*Component, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(100, nil)
	cfg := config.Defaults().FileIO
	cfg.DownloadDir = t.TempDir()
	return New(cfg, sender, bus, nil), bus
}

func TestUploadChecksumMismatchFailsValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	sender := &fakeSender{responses: map[string]json.RawMessage{}}
	c, _ := newTestComponent(t, sender)

	r := c.Upload(context.Background(), UploadRequest{
		InputObjectID:    "obj-1",
		Paths:            []string{path},
		ExpectedChecksum: "not-the-real-checksum",
	})
	require.False(t, r.IsSuccess())
	require.Contains(t, r.Message, "checksum")
}

func TestUploadSucceedsAndDispatchesChangeEvent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	sender := &fakeSender{responses: map[string]json.RawMessage{
		"Runtime.callFunctionOn": json.RawMessage(`{"result":{"type":"boolean","value":true}}`),
	}}
	c, _ := newTestComponent(t, sender)

	r := c.Upload(context.Background(), UploadRequest{
		InputObjectID: "obj-1",
		Paths:         []string{path},
	})
	require.True(t, r.IsSuccess())
	require.Contains(t, sender.calls, "DOM.setFileInputFiles")
	require.Contains(t, sender.calls, "Runtime.callFunctionOn")
}

func TestUploadRejectsMissingFile(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestComponent(t, sender)

	r := c.Upload(context.Background(), UploadRequest{
		InputObjectID: "obj-1",
		Paths:         []string{filepath.Join(t.TempDir(), "does-not-exist.bin")},
	})
	require.False(t, r.IsSuccess())
}

func TestDownloadWaitsForSizeStabilityAndVerifiesChecksum(t *testing.T) {
	sender := &fakeSender{}
	c, bus := newTestComponent(t, sender)
	c.cfg.StabilitySamples = 2
	c.cfg.StabilityIntervalMS = 10

	path := filepath.Join(c.cfg.DownloadDir, "report.csv")

	go func() {
		time.Sleep(5 * time.Millisecond)
		bus.Emit(eventbus.Event{Kind: eventbus.Kind("Page.downloadWillBegin"), Payload: json.RawMessage(`{"guid":"g1","suggestedFilename":"report.csv"}`)})
		require.NoError(t, os.WriteFile(path, []byte("partial"), 0o644))
		time.Sleep(15 * time.Millisecond)
		require.NoError(t, os.WriteFile(path, []byte("complete-content-here"), 0o644))
		time.Sleep(5 * time.Millisecond)
		bus.Emit(eventbus.Event{Kind: eventbus.Kind("Page.downloadProgress"), Payload: json.RawMessage(`{"guid":"g1","state":"completed"}`)})
	}()

	result, r := c.Download(context.Background(), DownloadRequest{
		Trigger:                   func(ctx context.Context) error { return nil },
		ExpectedFilenameSubstring: "report",
	})
	require.True(t, r.IsSuccess())
	require.Equal(t, path, result.Path)
	require.Equal(t, int64(len("complete-content-here")), result.SizeByte)
}

func TestDownloadTimesOutWithoutBeginEvent(t *testing.T) {
	sender := &fakeSender{}
	c, _ := newTestComponent(t, sender)
	c.cfg.DownloadTimeoutMS = 30

	_, r := c.Download(context.Background(), DownloadRequest{
		Trigger: func(ctx context.Context) error { return nil },
	})
	require.False(t, r.IsSuccess())
}

func TestInterceptChooserHandlesDialog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("pdf"), 0o644))

	sender := &fakeSender{}
	c, bus := newTestComponent(t, sender)

	go func() {
		time.Sleep(5 * time.Millisecond)
		bus.Emit(eventbus.Event{Kind: eventbus.Kind("Page.fileChooserOpened"), Payload: json.RawMessage(`{"mode":"selectSingle"}`)})
	}()

	r := c.InterceptChooser(context.Background(), ChooserRequest{
		Trigger: func(ctx context.Context) error { return nil },
		Paths:   []string{path},
	})
	require.True(t, r.IsSuccess())
	require.Contains(t, sender.calls, "Page.setInterceptFileChooserDialog")
	require.Contains(t, sender.calls, "Page.handleFileChooserIntercept")
}
