// Package perf implements the Performance component (spec.md §4.12): a
// command batcher that fuses short-lived JavaScript evaluations into a
// single round trip, and a per-job screenshot budget. The locator cache
// itself lives in internal/locator (see DESIGN.md); this package covers
// only the batcher and the budget.
package perf

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/session"
	"github.com/dev-console/browserctl/internal/wire"
)

// Sender is the narrow subset of *session.Session the batcher needs.
type Sender interface {
	Send(ctx context.Context, method string, params interface{}, timeout time.Duration) (session.CommandResult, error)
}

// EvalResult is one fused evaluation's outcome, unpacked from the batched
// round trip and dispatched back to its originating caller.
type EvalResult struct {
	Value json.RawMessage
	Err   error
}

type pendingEval struct {
	expression string
	replyTo    chan EvalResult
}

// Batcher accumulates JavaScript-evaluation requests and fuses them into
// one array expression once the configured batch size is reached or the
// debounce window elapses, whichever comes first. Non-evaluation commands
// are never routed through the batcher (spec.md §4.12: "Non-evaluation
// commands execute individually").
type Batcher struct {
	sender Sender
	logger *zap.Logger

	batchSize int
	debounce  time.Duration

	mu      sync.Mutex
	pending []pendingEval
	timer   *time.Timer
}

// NewBatcher builds a Batcher from the performance subsystem's
// configuration.
func NewBatcher(cfg config.PerfConfig, sender Sender, logger *zap.Logger) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	size := cfg.BatchSize
	if size <= 0 {
		size = 10
	}
	debounce := cfg.BatchDebounce()
	if debounce <= 0 {
		debounce = 15 * time.Millisecond
	}
	return &Batcher{sender: sender, logger: logger, batchSize: size, debounce: debounce}
}

// Evaluate queues expression for fused evaluation and blocks until its
// result is unpacked from a batch round trip (or the batch send itself
// fails).
func (b *Batcher) Evaluate(ctx context.Context, expression string) (json.RawMessage, error) {
	reply := make(chan EvalResult, 1)

	b.mu.Lock()
	b.pending = append(b.pending, pendingEval{expression: expression, replyTo: reply})
	flush := len(b.pending) >= b.batchSize
	if flush {
		if b.timer != nil {
			b.timer.Stop()
			b.timer = nil
		}
	} else if b.timer == nil {
		b.timer = time.AfterFunc(b.debounce, b.flush)
	}
	b.mu.Unlock()

	if flush {
		go b.flush()
	}

	select {
	case r := <-reply:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flush fuses every currently pending evaluation into one array
// expression and dispatches its results back to the waiting callers.
func (b *Batcher) flush() {
	b.mu.Lock()
	batch := b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if len(batch) == 1 {
		b.evaluateSingle(batch[0])
		return
	}

	exprs := make([]string, len(batch))
	for i, p := range batch {
		exprs[i] = p.expression
	}
	fused := fuseExpressions(exprs)

	ctx, cancel := context.WithTimeout(context.Background(), batchEvalTimeout)
	defer cancel()

	res, err := b.sender.Send(ctx, wire.MethodRuntimeEvaluate, map[string]interface{}{
		"expression": fused, "returnByValue": true, "awaitPromise": true,
	}, batchEvalTimeout)
	if err != nil {
		for _, p := range batch {
			p.replyTo <- EvalResult{Err: err}
		}
		return
	}

	var rr struct {
		Result struct {
			Value []json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails,omitempty"`
	}
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		for _, p := range batch {
			p.replyTo <- EvalResult{Err: fmt.Errorf("perf: decode batch result: %w", err)}
		}
		return
	}
	if rr.ExceptionDetails != nil {
		batchErr := fmt.Errorf("perf: batched evaluation threw: %s", rr.ExceptionDetails.Text)
		for _, p := range batch {
			p.replyTo <- EvalResult{Err: batchErr}
		}
		return
	}
	if len(rr.Result.Value) != len(batch) {
		batchErr := fmt.Errorf("perf: batch result count %d does not match request count %d", len(rr.Result.Value), len(batch))
		for _, p := range batch {
			p.replyTo <- EvalResult{Err: batchErr}
		}
		return
	}

	for i, p := range batch {
		p.replyTo <- EvalResult{Value: rr.Result.Value[i]}
	}
}

func (b *Batcher) evaluateSingle(p pendingEval) {
	ctx, cancel := context.WithTimeout(context.Background(), batchEvalTimeout)
	defer cancel()
	res, err := b.sender.Send(ctx, wire.MethodRuntimeEvaluate, map[string]interface{}{
		"expression": p.expression, "returnByValue": true, "awaitPromise": true,
	}, batchEvalTimeout)
	if err != nil {
		p.replyTo <- EvalResult{Err: err}
		return
	}
	var rr struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails,omitempty"`
	}
	if err := json.Unmarshal(res.Result, &rr); err != nil {
		p.replyTo <- EvalResult{Err: fmt.Errorf("perf: decode single-eval result: %w", err)}
		return
	}
	if rr.ExceptionDetails != nil {
		p.replyTo <- EvalResult{Err: fmt.Errorf("perf: evaluation threw: %s", rr.ExceptionDetails.Text)}
		return
	}
	p.replyTo <- EvalResult{Value: rr.Result.Value}
}

// fuseExpressions wraps each queued expression in its own arrow-function
// thunk and evaluates all of them inside one array literal, so one
// Runtime.evaluate round trip returns one result per queued caller in
// order. Each expression is fused as written; callers are responsible for
// ensuring their own expressions do not embed unsanitized input (the
// batcher only ever receives fixed, caller-authored expressions, never
// values read from the page).
func fuseExpressions(exprs []string) string {
	fused := "(function(){ return ["
	for i, e := range exprs {
		if i > 0 {
			fused += ","
		}
		fused += "(function(){ return (" + e + "); })()"
	}
	fused += "]; })()"
	return fused
}

const batchEvalTimeout = 5 * time.Second
