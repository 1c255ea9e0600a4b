package concurrency

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/metrics"
	"github.com/dev-console/browserctl/internal/reason"
)

// Manager runs a scheduler task that polls the priority queue and hands
// eligible jobs to a bounded worker pool, at most one job per target id
// at a time (spec.md §4.11, §5).
type Manager struct {
	cfg    config.ConcurrencyConfig
	logger *zap.Logger
	metric *metrics.Registry

	q *queue

	busyMu sync.Mutex
	busy   map[string]bool

	group *errgroup.Group

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a Manager from the concurrency subsystem's configuration.
func New(cfg config.ConcurrencyConfig, logger *zap.Logger, reg *metrics.Registry) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 4
	}
	g := &errgroup.Group{}
	g.SetLimit(poolSize)
	return &Manager{cfg: cfg, logger: logger, metric: reg, q: newQueue(), busy: make(map[string]bool), group: g}
}

// Submit enqueues job for scheduling, assigning it a fresh id when the
// caller left one unset, and returns the id the job was enqueued under so
// the caller can correlate it with a trace or watchdog entry.
func (m *Manager) Submit(job Job) string {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	m.q.push(job)
	if m.metric != nil {
		m.metric.QueueDepth.Set(float64(m.q.depth()))
	}
	return job.ID
}

// QueueDepth reports the current pending queue length.
func (m *Manager) QueueDepth() int { return m.q.depth() }

// IsBusy reports whether targetID currently has a running worker.
func (m *Manager) IsBusy(targetID string) bool {
	m.busyMu.Lock()
	defer m.busyMu.Unlock()
	return m.busy[targetID]
}

// Start launches the scheduler task. Call Stop to shut it down; in-flight
// jobs are allowed to finish.
func (m *Manager) Start() {
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.schedulerLoop()
}

// Stop signals the scheduler to exit and waits for outstanding jobs.
func (m *Manager) Stop() {
	if m.stop != nil {
		select {
		case <-m.stop:
		default:
			close(m.stop)
		}
	}
	m.wg.Wait()
	_ = m.group.Wait()
}

func (m *Manager) schedulerLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(schedulerPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.dispatchEligible()
		}
	}
}

// dispatchEligible drains every currently-eligible job in one pass so a
// burst of submissions does not wait a full poll interval per job.
func (m *Manager) dispatchEligible() {
	for {
		m.busyMu.Lock()
		snapshot := make(map[string]bool, len(m.busy))
		for k, v := range m.busy {
			snapshot[k] = v
		}
		m.busyMu.Unlock()

		job, ok := m.q.popEligible(snapshot)
		if !ok {
			return
		}

		m.busyMu.Lock()
		m.busy[job.TargetID] = true
		m.busyMu.Unlock()

		if m.metric != nil {
			m.metric.QueueDepth.Set(float64(m.q.depth()))
		}

		j := job
		m.group.Go(func() error {
			defer func() {
				m.busyMu.Lock()
				delete(m.busy, j.TargetID)
				m.busyMu.Unlock()
			}()
			ctx := context.Background()
			if err := j.Run(ctx); err != nil {
				m.logger.Warn("job failed", zap.String("job_id", j.ID), zap.String("target_id", j.TargetID), zap.Error(err))
				if m.metric != nil {
					m.metric.RecordOutcome("concurrency", reason.CDPCommandFailed)
				}
			}
			return nil
		})
	}
}
