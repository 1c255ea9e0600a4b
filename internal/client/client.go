// Package client implements the Client Facade: the public binding surface
// that wires every subsystem (session, event bus, target manager, wait
// engine, selector engine, action executor, navigation manager, file I/O,
// recovery manager, watchdog, concurrency manager, performance layer,
// observability) into one cohesive consumer-facing API. Grounded on the
// teacher's cmd/dev-console/server.go (one struct owning every subsystem,
// a constructor that wires them bottom-up, and a single Close that tears
// them all down in reverse order).
package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/action"
	"github.com/dev-console/browserctl/internal/concurrency"
	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/eventbus"
	"github.com/dev-console/browserctl/internal/fileio"
	"github.com/dev-console/browserctl/internal/locator"
	"github.com/dev-console/browserctl/internal/metrics"
	"github.com/dev-console/browserctl/internal/navigation"
	"github.com/dev-console/browserctl/internal/perf"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/recovery"
	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/target"
	"github.com/dev-console/browserctl/internal/trace"
	"github.com/dev-console/browserctl/internal/wait"
	"github.com/dev-console/browserctl/internal/watchdog"
)

// Client is one logical browser attachment: a session plus every
// subsystem built on top of it. Construct one with New, call Connect to
// dial the remote endpoint, and Close to tear everything down.
type Client struct {
	cfg    config.Config
	logger *zap.Logger
	metric *metrics.Registry

	Bus         *eventbus.Bus
	Session     *session.Session
	Targets     *target.Manager
	Wait        *wait.Engine
	Locator     *locator.Engine
	Actions     *action.Executor
	Navigation  *navigation.Manager
	Files       *fileio.Component
	Recovery    *recovery.Manager
	Watchdog    *watchdog.Watchdog
	Concurrency *concurrency.Manager
	Throttle    *concurrency.Throttle
	Batcher     *perf.Batcher
	Traces      *trace.Store
}

// New wires every subsystem against cfg but does not yet dial the browser
// endpoint; call Connect for that.
func New(cfg config.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := metrics.New()
	bus := eventbus.New(cfg.HistoryCapacity, logger)
	sess := session.New(cfg.Session, bus, logger, reg)

	targets := target.New(sess, bus, logger)
	waitEngine := wait.New(cfg.Wait, logger)
	locatorEngine := locator.New(sess, bus, logger, cfg.Perf.LocatorCacheTTL())
	executor := action.New(sess, locatorEngine, waitEngine, logger)
	batcher := perf.NewBatcher(cfg.Perf, sess, logger)
	evaluatingSender := perf.NewEvaluatingSender(sess, batcher)
	navManager := navigation.New(evaluatingSender, bus, waitEngine, logger, cfg.Navigation)
	files := fileio.New(cfg.FileIO, sess, bus, logger)
	recoveryManager := recovery.New(cfg.Recovery, logger)
	wd := watchdog.New(cfg.Watchdog, logger)
	concurrencyManager := concurrency.New(cfg.Concurrency, logger, reg)
	throttle := concurrency.NewThrottle(cfg.Concurrency)
	sess.SetThrottle(throttle)
	traceStore := trace.NewStore(cfg.HistoryCapacity)

	return &Client{
		cfg:    cfg,
		logger: logger,
		metric: reg,

		Bus:         bus,
		Session:     sess,
		Targets:     targets,
		Wait:        waitEngine,
		Locator:     locatorEngine,
		Actions:     executor,
		Navigation:  navManager,
		Files:       files,
		Recovery:    recoveryManager,
		Watchdog:    wd,
		Concurrency: concurrencyManager,
		Throttle:    throttle,
		Batcher:     batcher,
		Traces:      traceStore,
	}
}

// Connect dials the browser endpoint, initializes target discovery, and
// starts the watchdog scanner and concurrency scheduler. Per spec.md §5,
// these are the long-lived background tasks owned at the client level.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.Session.Connect(ctx); err != nil {
		return fmt.Errorf("client: connect: %w", err)
	}
	if err := c.Targets.Init(ctx); err != nil {
		return fmt.Errorf("client: init targets: %w", err)
	}
	c.Watchdog.Start()
	c.Concurrency.Start()
	return nil
}

// Close tears down the background tasks and the underlying session, in
// the reverse order Connect started them.
func (c *Client) Close() error {
	c.Concurrency.Stop()
	c.Watchdog.Stop()
	return c.Session.Close()
}

// Metrics exposes the Prometheus registry for wiring into an HTTP
// /metrics endpoint.
func (c *Client) Metrics() *metrics.Registry { return c.metric }

// NewScreenshotBudget builds a fresh per-job screenshot budget from the
// configured policy, per spec.md §4.12 ("per-job counter with a
// configurable ceiling").
func (c *Client) NewScreenshotBudget() *perf.ScreenshotBudget {
	return perf.NewScreenshotBudget(c.cfg.Perf.ScreenshotPolicy)
}

// RunJob executes fn under a fresh job trace, escalating through the
// recovery manager on failure and sending the watchdog a heartbeat at the
// start of each attempt. targetID is the target the watchdog's kill
// handler closes; fn receives the job's context and should return the
// terminal reason once finished. jobID identifies the job in traces and watchdog
// tracking; callers that don't need a caller-assigned id (e.g. to
// correlate with an external request id) can pass "" and one is minted.
func (c *Client) RunJob(ctx context.Context, jobID, targetID string, fn func(ctx context.Context) reason.Reason) reason.Reason {
	if jobID == "" {
		jobID = uuid.NewString()
	}
	jt := trace.NewJob(jobID, targetID)
	c.Watchdog.Track(jobID, watchdog.KillerFunc(func(ctx context.Context) bool {
		return c.Targets.CloseTarget(ctx, targetID) == nil
	}))
	defer c.Watchdog.Untrack(jobID)
	defer c.Traces.Record(jt)

	var last reason.Reason
	retryFn := func(ctx context.Context) error {
		c.Watchdog.Heartbeat(jobID)
		last = fn(ctx)
		if last.IsSuccess() {
			return nil
		}
		return last
	}

	if err := retryFn(ctx); err == nil {
		jt.Finish(last)
		return last
	}

	finalReason := c.Recovery.Escalate(ctx, jt, last, retryFn)
	jt.Finish(finalReason)
	return finalReason
}
