package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dev-console/browserctl/internal/config"
)

func testCfg() config.WaitConfig {
	return config.WaitConfig{
		StepTimeoutMS:     200,
		StateTimeoutMS:    400,
		JobTimeoutMS:      800,
		StabilityWindowMS: 30,
		PollIntervalMS:    10,
	}
}

func TestWaitSucceedsOnceStable(t *testing.T) {
	e := New(testCfg(), nil)
	calls := 0
	cond := ConditionFunc(func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})
	r := e.Wait(context.Background(), cond, TierStep, 0)
	if !r.IsSuccess() {
		t.Fatalf("expected success, got %+v", r)
	}
	if calls < 2 {
		t.Fatalf("expected multiple polls to satisfy stability window, got %d", calls)
	}
}

func TestWaitResetsStabilityOnFalse(t *testing.T) {
	e := New(testCfg(), nil)
	flips := 0
	cond := ConditionFunc(func(ctx context.Context) (bool, error) {
		flips++
		if flips == 2 {
			return false, nil
		}
		return true, nil
	})
	r := e.Wait(context.Background(), cond, TierStep, 0)
	if !r.IsSuccess() {
		t.Fatalf("expected eventual success, got %+v", r)
	}
	if flips < 3 {
		t.Fatalf("expected at least 3 polls (one reset), got %d", flips)
	}
}

func TestWaitTimesOutWhenNeverTrue(t *testing.T) {
	e := New(testCfg(), nil)
	cond := ConditionFunc(func(ctx context.Context) (bool, error) { return false, nil })
	r := e.Wait(context.Background(), cond, TierStep, 0)
	if r.IsSuccess() {
		t.Fatal("expected timeout")
	}
}

func TestWaitErrorTreatedAsNotYet(t *testing.T) {
	e := New(testCfg(), nil)
	calls := 0
	cond := ConditionFunc(func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("transient")
		}
		return true, nil
	})
	r := e.Wait(context.Background(), cond, TierStep, 0)
	if !r.IsSuccess() {
		t.Fatalf("expected success after transient errors, got %+v", r)
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	e := New(testCfg(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	cond := ConditionFunc(func(ctx context.Context) (bool, error) { return false, nil })
	r := e.Wait(ctx, cond, TierJob, 0)
	if r.IsSuccess() {
		t.Fatal("expected cancellation to not succeed")
	}
}
