package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dev-console/browserctl/internal/concurrency"
	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/metrics"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/transport"
	"github.com/dev-console/browserctl/internal/wire"
)

// wsConnection is the subset of *transport.Conn the session depends on;
// an interface so tests can substitute a fake transport without a real
// browser endpoint.
type wsConnection interface {
	WriteJSON(v interface{}) error
	ReadMessage() ([]byte, error)
	Close() error
}

// dialFunc opens a new wsConnection; overridable in tests.
type dialFunc func(ctx context.Context) (wsConnection, error)

// Session is one logical attachment to one browser endpoint.
type Session struct {
	cfg    config.SessionConfig
	bus    *eventbus.Bus
	logger *zap.Logger
	metric *metrics.Registry

	dial dialFunc

	state stateBox

	connMu sync.RWMutex
	conn   wsConnection

	cmdID    int64
	sem      *semaphore.Weighted
	throttle *concurrency.Throttle

	slotsMu sync.Mutex
	slots   map[int64]chan wire.ResponseFrame

	subscribedDomains []string

	heartbeatFailures int

	workerWG   sync.WaitGroup
	workerStop chan struct{}
	workerMu   sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a Session against cfg. bus is the event bus the session owns
// and emits all inbound protocol events onto.
func New(cfg config.SessionConfig, bus *eventbus.Bus, logger *zap.Logger, reg *metrics.Registry) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	max := cfg.MaxInFlightCommands
	if max <= 0 {
		max = 20
	}
	s := &Session{
		cfg:     cfg,
		bus:     bus,
		logger:  logger,
		metric:  reg,
		sem:     semaphore.NewWeighted(int64(max)),
		slots:   make(map[int64]chan wire.ResponseFrame),
		closed:  make(chan struct{}),
	}
	s.state.set(StateDisconnected)
	domains := cfg.SubscribedDomains
	if len(domains) == 0 {
		domains = wire.DefaultSubscribedDomains
	}
	s.subscribedDomains = domains
	s.dial = s.defaultDial
	return s
}

func (s *Session) defaultDial(ctx context.Context) (wsConnection, error) {
	wsURL, err := transport.ResolveURL(ctx, s.cfg.WSURL, s.cfg.RemotePort)
	if err != nil {
		return nil, err
	}
	return transport.Dial(ctx, wsURL, transport.DialOptions{
		ConnectTimeout: s.cfg.ConnectTimeout(),
		SuppressOrigin: true,
	})
}

// SetThrottle attaches the command throttle every outbound Send acquires
// and reports round-trip latency to (spec.md §4.11). Not wired by default
// so unit tests against a bare Session stay unthrottled; the Client
// Facade wires one in per cfg.Concurrency.
func (s *Session) SetThrottle(t *concurrency.Throttle) { s.throttle = t }

// State returns the session's current lifecycle state.
func (s *Session) State() State { return s.state.get() }

// Bus returns the event bus this session emits onto.
func (s *Session) Bus() *eventbus.Bus { return s.bus }

// Connect dials the browser endpoint and drives the lifecycle through
// connecting -> connected -> subscribing -> ready.
func (s *Session) Connect(ctx context.Context) error {
	s.state.set(StateConnecting)

	conn, err := s.dial(ctx)
	if err != nil {
		s.state.set(StateFailed)
		return fmt.Errorf("session: connect: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.state.set(StateConnected)

	s.startWorkers()

	s.state.set(StateSubscribing)
	s.enableDomains(ctx)

	s.state.set(StateReady)
	s.logger.Info("session ready")
	return nil
}

// enableDomains enables each configured protocol domain with a short
// timeout; per-domain failure is tolerated (that domain is simply not
// subscribed), per spec.md §4.2.
func (s *Session) enableDomains(ctx context.Context) {
	for _, domain := range s.subscribedDomains {
		dctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := s.Send(dctx, domain+".enable", nil, 2*time.Second)
		cancel()
		if err != nil {
			s.logger.Warn("domain enable failed, continuing without it",
				zap.String("domain", domain), zap.Error(err))
		}
	}
}

func (s *Session) startWorkers() {
	s.workerMu.Lock()
	defer s.workerMu.Unlock()
	s.workerStop = make(chan struct{})
	s.workerWG.Add(2)
	go s.receiverLoop(s.workerStop)
	go s.heartbeatLoop(s.workerStop)
}

func (s *Session) stopWorkers() {
	s.workerMu.Lock()
	stop := s.workerStop
	s.workerMu.Unlock()
	if stop == nil {
		return
	}
	select {
	case <-stop:
	default:
		close(stop)
	}
	s.workerWG.Wait()
}

// Close tears the session down explicitly. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.set(StateClosing)
		s.stopWorkers()
		s.connMu.Lock()
		if s.conn != nil {
			err = s.conn.Close()
		}
		s.connMu.Unlock()
		s.drainSlots(reason.New(reason.CDPDisconnected, "session closed"))
		s.state.set(StateClosed)
		close(s.closed)
	})
	return err
}

// Done is closed once the session has fully closed.
func (s *Session) Done() <-chan struct{} { return s.closed }

func (s *Session) currentConn() (wsConnection, bool) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.conn, s.conn != nil
}
