package session

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/reason"
)

// handleDisconnect is the single entry point for any loop (receiver,
// heartbeat) that detects the connection is gone. It is idempotent: if the
// session is already tearing down or already reconnecting, the second
// caller is a no-op.
func (s *Session) handleDisconnect(cause error) {
	s.workerMu.Lock()
	cur := s.state.get()
	if cur == StateClosing || cur == StateClosed || cur == StateReconnecting {
		s.workerMu.Unlock()
		return
	}
	s.state.set(StateReconnecting)
	s.workerMu.Unlock()

	s.logger.Warn("session disconnected", zap.Error(cause))
	s.bus.Emit(eventbus.Event{
		Kind:      "session.disconnected",
		Timestamp: time.Now().UTC(),
	})

	s.stopWorkers()
	s.connMu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
	s.drainSlots(reason.New(reason.CDPDisconnected, cause.Error()))

	if !s.cfg.AutoReconnect {
		s.state.set(StateDisconnected)
		return
	}
	s.reconnectLoop()
}

// reconnectLoop retries the dial with a capped exponential backoff
// (cenkalti/backoff/v4), re-enabling every previously subscribed domain on
// success before returning the session to ready. Exhausting
// max_reconnect_attempts leaves the session in the terminal failed state.
func (s *Session) reconnectLoop() {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.ReconnectDelay()
	b.MaxInterval = s.cfg.MaxReconnectDelay()
	b.Multiplier = s.cfg.ReconnectBackoffMultiplier
	b.MaxElapsedTime = 0

	maxAttempts := s.cfg.MaxReconnectAttempts
	attempt := 0
	for {
		attempt++
		if maxAttempts > 0 && attempt > maxAttempts {
			s.logger.Error("reconnect attempts exhausted", zap.Int("attempts", attempt-1))
			s.state.set(StateFailed)
			return
		}

		conn, err := s.dial(context.Background())
		if err == nil {
			s.connMu.Lock()
			s.conn = conn
			s.connMu.Unlock()
			s.state.set(StateRecovering)
			s.bus.Emit(eventbus.Event{Kind: "session.recovering", Timestamp: time.Now().UTC()})
			s.startWorkers()
			s.enableDomains(context.Background())
			s.state.set(StateReady)
			s.heartbeatFailures = 0
			s.logger.Info("session reconnected", zap.Int("attempt", attempt))
			s.bus.Emit(eventbus.Event{Kind: "session.reconnected", Timestamp: time.Now().UTC()})
			return
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			s.logger.Error("reconnect backoff exhausted")
			s.state.set(StateFailed)
			return
		}
		s.logger.Warn("reconnect attempt failed",
			zap.Int("attempt", attempt), zap.Error(err), zap.Duration("next_delay", delay))

		timer := time.NewTimer(delay)
		<-timer.C
	}
}
