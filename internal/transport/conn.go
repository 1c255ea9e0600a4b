package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn wraps a *websocket.Conn with a send lock (so frames are never
// interleaved on the wire, spec.md §5) and a short-timeout read loop so
// shutdown can be observed promptly.
type Conn struct {
	ws       *websocket.Conn
	writeMu  sync.Mutex
	readTO   time.Duration
}

// DialOptions configures the handshake. SuppressOrigin drops the Origin
// header; if the handshake is rejected for requiring one, Dial retries
// once with a host-echoing Origin header (spec.md §6: "Origin headers
// MUST be suppressible ... with a host-echo fallback").
type DialOptions struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	SuppressOrigin bool
}

// Dial opens the WebSocket connection described by wsURL.
func Dial(ctx context.Context, wsURL string, opts DialOptions) (*Conn, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 500 * time.Millisecond
	}

	dctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	dialer := &websocket.Dialer{
		HandshakeTimeout: opts.ConnectTimeout,
		WriteBufferSize:  1 << 20,
		ReadBufferSize:   1 << 20,
	}

	header := http.Header{}
	if !opts.SuppressOrigin {
		header.Set("Origin", originFor(wsURL))
	}

	ws, _, err := dialer.DialContext(dctx, wsURL, header)
	if err != nil && opts.SuppressOrigin {
		// Fallback: some embedders reject a missing Origin; retry with
		// one that echoes the target host, which browsers treat as
		// same-origin for the debugger endpoint.
		header.Set("Origin", originFor(wsURL))
		ws, _, err = dialer.DialContext(dctx, wsURL, header)
	}
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", wsURL, err)
	}

	return &Conn{ws: ws, readTO: opts.ReadTimeout}, nil
}

func originFor(wsURL string) string {
	u, err := url.Parse(wsURL)
	if err != nil {
		return "http://127.0.0.1"
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, u.Host)
}

// WriteJSON sends one frame under the send lock.
func (c *Conn) WriteJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// ReadMessage reads one frame with the configured short read timeout so
// the caller's loop can periodically check for shutdown. A timeout
// returns (nil, errReadTimeout); the caller should treat that as "no
// message yet", not a fatal error.
func (c *Conn) ReadMessage() ([]byte, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.readTO))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, errReadTimeout
		}
		return nil, err
	}
	return data, nil
}

var errReadTimeout = errors.New("transport: read timeout")

// IsReadTimeout reports whether err is the benign per-poll read timeout.
func IsReadTimeout(err error) bool {
	return errors.Is(err, errReadTimeout)
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// IsConnectionError classifies err as indicating the peer is unreachable,
// grounded on the teacher's bridge.IsConnectionError classifier: prefer
// typed error checks, fall back to substring matching only for wrapped
// errors that lose their concrete type.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsUnexpectedCloseError(err)
}
