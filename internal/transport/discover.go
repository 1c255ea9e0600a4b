// Package transport owns the single WebSocket connection to a browser's
// DevTools endpoint: URL discovery, origin-suppressed dial, a single
// reader task, and a send-locked writer (spec.md §4.2, §5).
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PageDescriptor is one entry of the browser's `GET /json` page index.
type PageDescriptor struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	URL                  string `json:"url"`
	Title                string `json:"title"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// internalScheme prefixes that mark a page as a browser-internal page,
// never eligible for the "first non-internal page" discovery pick.
var internalSchemes = []string{"chrome://", "devtools://", "about:", "chrome-extension://"}

func isInternalURL(u string) bool {
	for _, scheme := range internalSchemes {
		if strings.HasPrefix(u, scheme) {
			return true
		}
	}
	return false
}

// DiscoverWebSocketURL resolves the debugger WebSocket URL for a browser
// listening at http://127.0.0.1:port. It picks the first page-typed
// descriptor whose URL is not internal, per spec.md §6.
func DiscoverWebSocketURL(ctx context.Context, port int) (string, error) {
	endpoint := fmt.Sprintf("http://127.0.0.1:%d/json", port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("discover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discover: unexpected status %d", resp.StatusCode)
	}

	var pages []PageDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&pages); err != nil {
		return "", fmt.Errorf("discover: decode page index: %w", err)
	}

	for _, p := range pages {
		if p.Type == "page" && !isInternalURL(p.URL) && p.WebSocketDebuggerURL != "" {
			return p.WebSocketDebuggerURL, nil
		}
	}
	return "", fmt.Errorf("discover: no eligible page target at %s", endpoint)
}

// ResolveURL returns wsURL directly if non-empty (the preferred path),
// otherwise discovers it from the remote port.
func ResolveURL(ctx context.Context, wsURL string, remotePort int) (string, error) {
	if wsURL != "" {
		return wsURL, nil
	}
	deadline := 5 * time.Second
	dctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	return DiscoverWebSocketURL(dctx, remotePort)
}
