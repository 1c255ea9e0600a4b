package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/wire"
)

var errHeartbeatFailed = errors.New("session: heartbeat exceeded failure threshold")
var errInspectorDetached = errors.New("session: inspector detached")

// heartbeatLoop periodically issues a trivial round-trip command; three
// consecutive failures (spec.md §4.2, max_heartbeat_failures) trigger
// disconnect handling rather than accumulating silently forever.
func (s *Session) heartbeatLoop(stop chan struct{}) {
	defer s.workerWG.Done()

	interval := s.cfg.HeartbeatInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	maxFailures := s.cfg.MaxHeartbeatFailures
	if maxFailures <= 0 {
		maxFailures = 3
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HeartbeatTimeout())
			_, err := s.Send(ctx, wire.MethodBrowserGetVersion, nil, s.cfg.HeartbeatTimeout())
			cancel()
			if err != nil {
				s.heartbeatFailures++
				s.logger.Warn("heartbeat failed",
					zap.Int("consecutive_failures", s.heartbeatFailures), zap.Error(err))
				if s.heartbeatFailures >= maxFailures {
					go s.handleDisconnect(errHeartbeatFailed)
					return
				}
				continue
			}
			s.heartbeatFailures = 0
		}
	}
}
