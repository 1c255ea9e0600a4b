package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dev-console/browserctl/internal/config"
)

func TestQueuePopEligibleRespectsPriority(t *testing.T) {
	q := newQueue()
	q.push(Job{ID: "low", TargetID: "t1", Priority: 1})
	q.push(Job{ID: "high", TargetID: "t2", Priority: 10})
	q.push(Job{ID: "mid", TargetID: "t3", Priority: 5})

	job, ok := q.popEligible(nil)
	require.True(t, ok)
	require.Equal(t, "high", job.ID)

	job, ok = q.popEligible(nil)
	require.True(t, ok)
	require.Equal(t, "mid", job.ID)

	job, ok = q.popEligible(nil)
	require.True(t, ok)
	require.Equal(t, "low", job.ID)

	_, ok = q.popEligible(nil)
	require.False(t, ok)
}

func TestQueuePopEligibleSkipsBusyTarget(t *testing.T) {
	q := newQueue()
	q.push(Job{ID: "a", TargetID: "busy-target", Priority: 10})
	q.push(Job{ID: "b", TargetID: "free-target", Priority: 1})

	job, ok := q.popEligible(map[string]bool{"busy-target": true})
	require.True(t, ok)
	require.Equal(t, "b", job.ID)
}

func TestManagerSerializesPerTarget(t *testing.T) {
	m := New(config.ConcurrencyConfig{WorkerPoolSize: 4}, nil, nil)
	m.Start()
	defer m.Stop()

	var running int32
	var maxConcurrent int32
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		m.Submit(Job{
			ID:       "job",
			TargetID: "shared-target",
			Priority: 1,
			Run: func(ctx context.Context) error {
				defer wg.Done()
				n := atomic.AddInt32(&running, 1)
				if n > atomic.LoadInt32(&maxConcurrent) {
					atomic.StoreInt32(&maxConcurrent, n)
				}
				time.Sleep(30 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			},
		})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("jobs did not complete in time")
	}

	require.Equal(t, int32(1), atomic.LoadInt32(&maxConcurrent))
}

func TestManagerRunsDistinctTargetsConcurrently(t *testing.T) {
	m := New(config.ConcurrencyConfig{WorkerPoolSize: 4}, nil, nil)
	m.Start()
	defer m.Stop()

	var wg sync.WaitGroup
	start := make(chan struct{})
	var inFlight int32
	var maxConcurrent int32

	for i := 0; i < 3; i++ {
		wg.Add(1)
		m.Submit(Job{
			ID:       "job",
			TargetID: string(rune('a' + i)),
			Priority: 1,
			Run: func(ctx context.Context) error {
				defer wg.Done()
				<-start
				n := atomic.AddInt32(&inFlight, 1)
				if n > atomic.LoadInt32(&maxConcurrent) {
					atomic.StoreInt32(&maxConcurrent, n)
				}
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			},
		})
	}

	time.Sleep(150 * time.Millisecond)
	close(start)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("jobs did not complete in time")
	}

	require.Greater(t, atomic.LoadInt32(&maxConcurrent), int32(1))
}

func TestSubmitAssignsIDWhenCallerLeavesItBlank(t *testing.T) {
	m := New(config.ConcurrencyConfig{WorkerPoolSize: 1}, nil, nil)

	id := m.Submit(Job{TargetID: "t1", Run: func(ctx context.Context) error { return nil }})
	require.NotEmpty(t, id)

	id2 := m.Submit(Job{TargetID: "t1", Run: func(ctx context.Context) error { return nil }})
	require.NotEmpty(t, id2)
	require.NotEqual(t, id, id2)
}

func TestSubmitKeepsCallerSuppliedID(t *testing.T) {
	m := New(config.ConcurrencyConfig{WorkerPoolSize: 1}, nil, nil)
	require.Equal(t, "explicit-id", m.Submit(Job{ID: "explicit-id", TargetID: "t1", Run: func(ctx context.Context) error { return nil }}))
}

func TestThrottleShrinksUnderHighLatencyAndGrowsUnderLow(t *testing.T) {
	th := NewThrottle(config.ConcurrencyConfig{ThrottleRatePerSecond: 50, ThrottleConcurrency: 10})
	require.Equal(t, 1.0, th.Multiplier())

	for i := 0; i < 5; i++ {
		th.Observe(600 * time.Millisecond)
	}
	require.Less(t, th.Multiplier(), 1.0)

	shrunk := th.Multiplier()
	for i := 0; i < 20; i++ {
		th.Observe(10 * time.Millisecond)
	}
	require.Greater(t, th.Multiplier(), shrunk)
}

func TestThrottleAcquireRelease(t *testing.T) {
	th := NewThrottle(config.ConcurrencyConfig{ThrottleRatePerSecond: 1000, ThrottleConcurrency: 1})
	ctx := context.Background()

	require.NoError(t, th.Acquire(ctx))

	acquired := make(chan error, 1)
	go func() {
		acquired <- th.Acquire(ctx)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while concurrency slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	th.Release()
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second acquire did not unblock after release")
	}
	th.Release()
}
