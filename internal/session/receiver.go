package session

import (
	"encoding/json"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/transport"
	"github.com/dev-console/browserctl/internal/wire"
)

// isBenignReadTimeout reports whether err merely means "no message arrived
// within the poll interval" rather than a dead connection. transport.Conn
// signals this with its own sentinel; any other wsConnection implementation
// (including tests) may instead return a plain net.Error with Timeout()
// true, which is treated the same way.
func isBenignReadTimeout(err error) bool {
	if transport.IsReadTimeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// receiverLoop reads frames off the active connection until stop is closed
// or the connection itself errors, distinguishing response frames from
// event frames via wire.RawFrame.IsResponse and routing each accordingly.
func (s *Session) receiverLoop(stop chan struct{}) {
	defer s.workerWG.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}

		conn, ok := s.currentConn()
		if !ok {
			return
		}

		data, err := conn.ReadMessage()
		if err != nil {
			if isBenignReadTimeout(err) {
				continue
			}
			select {
			case <-stop:
				return
			default:
			}
			s.logger.Warn("receive loop: connection error", zap.Error(err))
			go s.handleDisconnect(err)
			return
		}

		var raw wire.RawFrame
		if err := json.Unmarshal(data, &raw); err != nil {
			s.logger.Debug("receive loop: malformed frame", zap.Error(err))
			continue
		}

		if raw.IsResponse() {
			s.deliver(wire.ResponseFrame{ID: *raw.ID, Result: raw.Result, Error: raw.Error})
			continue
		}
		if raw.Method == "" {
			continue
		}

		s.bus.Emit(eventbus.Event{
			Kind:      eventbus.Kind(raw.Method),
			Payload:   raw.Params,
			Timestamp: time.Now().UTC(),
			SessionID: raw.SessionID,
		})

		if raw.Method == wire.EventInspectorDetached {
			s.logger.Warn("inspector detached, tearing down session")
			go s.handleDisconnect(errInspectorDetached)
			return
		}
	}
}
