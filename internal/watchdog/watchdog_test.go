package watchdog

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dev-console/browserctl/internal/config"
)

func TestHeartbeatTimeoutTriggersKill(t *testing.T) {
	cfg := config.WatchdogConfig{
		HeartbeatTimeoutMS: 50, EventTimeoutMS: 10000, ProgressTimeoutMS: 10000,
		JobHardTimeoutMS: 10000, MaxFailuresBeforePoison: 1, PoisonCooldownMS: 60000,
	}
	w := New(cfg, nil)

	var killed int32
	w.Track("ctx-1", KillerFunc(func(ctx context.Context) bool {
		atomic.AddInt32(&killed, 1)
		return true
	}))

	w.Start()
	defer w.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&killed) > 0
	}, 3*time.Second, 50*time.Millisecond)

	require.True(t, w.IsPoisoned("ctx-1"))
}

func TestHeartbeatKeepsContextAlive(t *testing.T) {
	cfg := config.WatchdogConfig{
		HeartbeatTimeoutMS: 200, EventTimeoutMS: 10000, ProgressTimeoutMS: 10000,
		JobHardTimeoutMS: 10000, MaxFailuresBeforePoison: 1, PoisonCooldownMS: 60000,
	}
	w := New(cfg, nil)
	w.Track("ctx-2", KillerFunc(func(ctx context.Context) bool { return true }))
	w.Start()
	defer w.Stop()

	stop := time.After(500 * time.Millisecond)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-stop:
			break loop
		case <-ticker.C:
			w.Heartbeat("ctx-2")
		}
	}
	require.False(t, w.IsPoisoned("ctx-2"))
}
