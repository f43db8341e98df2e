package reload

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_NotifyRunsRegisteredFunc(t *testing.T) {
	c := New(nil)
	var calls atomic.Int32
	c.Register(Data, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	require.NoError(t, c.Notify(context.Background(), Data))
	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCoordinator_NotifyUnregisteredTargetIsNoop(t *testing.T) {
	c := New(nil)
	assert.NoError(t, c.Notify(context.Background(), Config))
}

func TestCoordinator_ConcurrentNotifyCoalescesIntoOneRerun(t *testing.T) {
	c := New(nil)
	block := make(chan struct{})
	var calls atomic.Int32
	c.Register(Data, func(ctx context.Context) error {
		n := calls.Add(1)
		if n == 1 {
			<-block // hold the first run open so the second Notify lands as "pending"
		}
		return nil
	})

	require.NoError(t, c.Notify(context.Background(), Data))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Notify(context.Background(), Data))
	close(block)

	require.Eventually(t, func() bool {
		return calls.Load() == 2
	}, time.Second, 5*time.Millisecond)

	// a third Notify after everything settles must not be coalesced away
	require.NoError(t, c.Notify(context.Background(), Data))
	require.Eventually(t, func() bool {
		return calls.Load() == 3
	}, time.Second, 5*time.Millisecond)
}

func TestCoordinator_FailedReloadIsLoggedNotPanicked(t *testing.T) {
	c := New(nil)
	done := make(chan struct{})
	c.Register(Data, func(ctx context.Context) error {
		defer close(done)
		return errors.New("boom")
	})

	require.NoError(t, c.Notify(context.Background(), Data))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reload func never ran")
	}
}

func TestCoordinator_ListenSignalsDispatchesToTargets(t *testing.T) {
	c := New(nil)
	var dataCalls, configCalls atomic.Int32
	c.Register(Data, func(ctx context.Context) error {
		dataCalls.Add(1)
		return nil
	})
	c.Register(Config, func(ctx context.Context) error {
		configCalls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.ListenSignals(ctx)
	defer c.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	require.Eventually(t, func() bool { return dataCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGHUP))
	require.Eventually(t, func() bool { return configCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
}
