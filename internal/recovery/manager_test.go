package recovery

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dev-console/browserctl/internal/config"
	"github.com/dev-console/browserctl/internal/reason"
	"github.com/dev-console/browserctl/internal/trace"
)

func TestClassifyLevels(t *testing.T) {
	require.Equal(t, LevelStepRetry, Classify(reason.New(reason.CDPCommandFailed, "x")))
	require.Equal(t, LevelRecreateContext, Classify(reason.New(reason.TargetCrashed, "x")))
	require.Equal(t, LevelRestartBrowser, Classify(reason.New(reason.BrowserCrashed, "x")))
	require.Equal(t, LevelNone, Classify(reason.New(reason.ValidationFailed, "x")))
}

func TestStepRetrySucceedsAfterFailures(t *testing.T) {
	cfg := config.RecoveryConfig{MaxStepRetries: 3, StepRetryDelayMS: 1, StepRetryBackoff: 1.0}
	m := New(cfg, nil)
	jt := trace.NewJob("job-1", "t1")

	attempts := 0
	r := m.Escalate(context.Background(), jt, reason.New(reason.CDPCommandFailed, "boom"), func(ctx context.Context) error {
		attempts++
		if attempts < 4 {
			return errors.New("still failing")
		}
		return nil
	})

	require.True(t, r.IsSuccess())
	require.Equal(t, 4, attempts)
	require.Len(t, jt.Recoveries, 4)
}

func TestRecreateContextInvokesKiller(t *testing.T) {
	cfg := config.RecoveryConfig{MaxRecreateAttempts: 1, RecreateDelayMS: 1}
	m := New(cfg, nil)
	jt := trace.NewJob("job-2", "t1")

	killed := false
	m.RegisterKiller(LevelRecreateContext, KillerFunc(func(ctx context.Context) bool {
		killed = true
		return true
	}))

	r := m.Escalate(context.Background(), jt, reason.New(reason.TargetCrashed, "crashed"), func(ctx context.Context) error {
		return nil
	})

	require.True(t, r.IsSuccess())
	require.True(t, killed)
}

func TestEscalatesThroughAllLevelsOnExhaustion(t *testing.T) {
	cfg := config.RecoveryConfig{
		MaxStepRetries: 1, StepRetryDelayMS: 1, StepRetryBackoff: 1.0,
		MaxStateRetries: 1, StateRetryDelayMS: 1,
		MaxRecreateAttempts: 1, RecreateDelayMS: 1,
		MaxRestartAttempts: 1, RestartDelayMS: 1,
	}
	m := New(cfg, nil)
	jt := trace.NewJob("job-3", "t1")

	r := m.Escalate(context.Background(), jt, reason.New(reason.TimeoutStep, "never works"), func(ctx context.Context) error {
		return errors.New("always fails")
	})

	require.False(t, r.IsSuccess())
	require.Equal(t, reason.RestartBrowser, r.Code)
	require.NotZero(t, len(jt.Recoveries))
}
