package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/wire"
)

// CommandResult is the outcome of a successfully round-tripped command.
type CommandResult struct {
	Result json.RawMessage
}

// Send issues method with params and waits up to timeout for the matching
// response, bounded by the session's max-in-flight-commands semaphore
// (spec.md §4.2 "command queue"). Acquiring the semaphore itself races
// against ctx/timeout, surfacing reason.QueueFull when the in-flight table
// is saturated for the whole wait.
func (s *Session) Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (CommandResult, error) {
	conn, ok := s.currentConn()
	if !ok {
		return CommandResult{}, reason.New(reason.CDPDisconnected, "no active connection")
	}

	acquireCtx, cancelAcquire := context.WithTimeout(ctx, timeout)
	defer cancelAcquire()
	if err := s.sem.Acquire(acquireCtx, 1); err != nil {
		return CommandResult{}, reason.New(reason.QueueFull, "max in-flight commands reached").
			WithContext(map[string]interface{}{"method": method})
	}
	defer s.sem.Release(1)

	if s.throttle != nil {
		if err := s.throttle.Acquire(acquireCtx); err != nil {
			return CommandResult{}, reason.New(reason.Throttled, "command throttle did not admit in time").
				WithContext(map[string]interface{}{"method": method})
		}
		defer s.throttle.Release()
	}

	start := time.Now()
	defer func() {
		if s.throttle != nil {
			s.throttle.Observe(time.Since(start))
		}
	}()

	id := atomic.AddInt64(&s.cmdID, 1)
	ch := make(chan wire.ResponseFrame, 1)
	s.slotsMu.Lock()
	s.slots[id] = ch
	s.slotsMu.Unlock()
	defer func() {
		s.slotsMu.Lock()
		delete(s.slots, id)
		s.slotsMu.Unlock()
	}()

	frame := wire.CommandFrame{ID: id, Method: method}
	if params != nil {
		frame.Params = wire.Marshal(params)
	}
	if err := conn.WriteJSON(frame); err != nil {
		return CommandResult{}, reason.New(reason.CDPCommandFailed, fmt.Sprintf("write %s: %v", method, err)).
			WithContext(map[string]interface{}{"method": method})
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		if resp.Error != nil {
			return CommandResult{}, reason.New(reason.CDPCommandFailed, resp.Error.Message).
				WithContext(map[string]interface{}{"method": method, "protocol_code": resp.Error.Code})
		}
		return CommandResult{Result: resp.Result}, nil
	case <-timer.C:
		return CommandResult{}, reason.New(reason.TimeoutStep, fmt.Sprintf("no response for %s within %s", method, timeout)).
			WithContext(map[string]interface{}{"method": method})
	case <-ctx.Done():
		return CommandResult{}, reason.New(reason.TimeoutStep, fmt.Sprintf("%s cancelled: %v", method, ctx.Err()))
	}
}

// deliver routes an inbound response frame to its waiting slot, if any.
func (s *Session) deliver(resp wire.ResponseFrame) {
	s.slotsMu.Lock()
	ch, ok := s.slots[resp.ID]
	s.slotsMu.Unlock()
	if !ok {
		s.logger.Debug("response for unknown or expired command id", zap.Int64("id", resp.ID))
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// drainSlots delivers a synthetic error response to every pending command,
// unblocking Send callers when the session tears down mid-flight.
func (s *Session) drainSlots(r reason.Reason) {
	s.slotsMu.Lock()
	pending := make([]chan wire.ResponseFrame, 0, len(s.slots))
	for id, ch := range s.slots {
		pending = append(pending, ch)
		delete(s.slots, id)
	}
	s.slotsMu.Unlock()

	for _, ch := range pending {
		select {
		case ch <- wire.ResponseFrame{Error: &wire.ProtocolError{Message: r.Message}}:
		default:
		}
	}
}
