package perf

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/session"
)

type fakeEvalSender struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeEvalSender) Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	m := params.(map[string]interface{})
	expr, _ := m["expression"].(string)

	if len(expr) > 0 && expr[0] == '(' && len(expr) > 10 && expr[1] == 'f' {
		// Fused batch expression: return one value per fused thunk.
		// Count occurrences of "(function(){ return (" in the body to
		// know how many slots to fill.
		n := countFusedThunks(expr)
		values := make([]json.RawMessage, n)
		for i := range values {
			values[i] = json.RawMessage(`1`)
		}
		raw, _ := json.Marshal(map[string]interface{}{"result": map[string]interface{}{"value": values}})
		return session.CommandResult{Result: raw}, nil
	}

	raw, _ := json.Marshal(map[string]interface{}{"result": map[string]interface{}{"value": 1}})
	return session.CommandResult{Result: raw}, nil
}

func countFusedThunks(expr string) int {
	count := 0
	marker := "(function(){ return ("
	for i := 0; i+len(marker) <= len(expr); i++ {
		if expr[i:i+len(marker)] == marker {
			count++
		}
	}
	return count
}

func (f *fakeEvalSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestBatcherFusesConcurrentEvaluations(t *testing.T) {
	sender := &fakeEvalSender{}
	cfg := config.PerfConfig{BatchSize: 5, BatchDebounceMS: 50}
	b := NewBatcher(cfg, sender, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Evaluate(context.Background(), "1+1")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, sender.callCount())
}

func TestBatcherFlushesOnDebounceWithoutFullBatch(t *testing.T) {
	sender := &fakeEvalSender{}
	cfg := config.PerfConfig{BatchSize: 100, BatchDebounceMS: 20}
	b := NewBatcher(cfg, sender, nil)

	_, err := b.Evaluate(context.Background(), "2+2")
	require.NoError(t, err)
	require.Equal(t, 1, sender.callCount())
}

func TestScreenshotBudgetDeniesAboveCeiling(t *testing.T) {
	budget := NewScreenshotBudget(config.ScreenshotPolicy{
		Enabled: true, OnError: true, OnStateChange: true, MaxPerJob: 2,
	})

	require.True(t, budget.Allow(TriggerError))
	require.True(t, budget.Allow(TriggerError))
	require.False(t, budget.Allow(TriggerError))

	require.Equal(t, 2, budget.Taken())
	require.Equal(t, 1, budget.Skipped())
}

func TestScreenshotBudgetDeniesDisabledTrigger(t *testing.T) {
	budget := NewScreenshotBudget(config.ScreenshotPolicy{
		Enabled: true, OnError: true, OnStateChange: false, MaxPerJob: 10,
	})

	require.False(t, budget.Allow(TriggerStateChange))
	require.Equal(t, 0, budget.Taken())
	require.Equal(t, 1, budget.Skipped())
}

type fakeRawSender struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRawSender) Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()
	raw, _ := json.Marshal(map[string]interface{}{"result": map[string]interface{}{"objectId": "obj-1"}})
	return session.CommandResult{Result: raw}, nil
}

func (f *fakeRawSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestEvaluatingSenderFusesPlainValueEvaluates(t *testing.T) {
	eval := &fakeEvalSender{}
	cfg := config.PerfConfig{BatchSize: 5, BatchDebounceMS: 50}
	batcher := NewBatcher(cfg, eval, nil)
	es := NewEvaluatingSender(eval, batcher)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := es.Send(context.Background(), "Runtime.evaluate",
				map[string]interface{}{"expression": "document.title", "returnByValue": true}, time.Second)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, eval.callCount())
}

func TestEvaluatingSenderPassesThroughObjectReturningEvaluates(t *testing.T) {
	raw := &fakeRawSender{}
	batcher := NewBatcher(config.PerfConfig{}, raw, nil)
	es := NewEvaluatingSender(raw, batcher)

	res, err := es.Send(context.Background(), "Runtime.evaluate",
		map[string]interface{}{"expression": "document.documentElement", "returnByValue": false}, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, raw.callCount())

	var decoded struct {
		Result struct {
			ObjectID string `json:"objectId"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(res.Result, &decoded))
	require.Equal(t, "obj-1", decoded.Result.ObjectID)
}

func TestEvaluatingSenderPassesThroughNonEvaluateCommands(t *testing.T) {
	raw := &fakeRawSender{}
	batcher := NewBatcher(config.PerfConfig{}, raw, nil)
	es := NewEvaluatingSender(raw, batcher)

	_, err := es.Send(context.Background(), "Runtime.callFunctionOn",
		map[string]interface{}{"functionDeclaration": "function(){}", "objectId": "obj-1"}, time.Second)
	require.NoError(t, err)
	require.Equal(t, 1, raw.callCount())
}

func TestScreenshotBudgetZeroCeilingDeniesEverything(t *testing.T) {
	budget := NewScreenshotBudget(config.ScreenshotPolicy{
		Enabled: true, OnError: true, OnStateChange: true, MaxPerJob: 0,
	})

	require.False(t, budget.Allow(TriggerError))
	require.Equal(t, 0, budget.Taken())
	require.Equal(t, 1, budget.Skipped())
}
