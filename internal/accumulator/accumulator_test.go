package accumulator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlusher struct {
	mu       sync.Mutex
	applied  []map[string]uint64
	failNext bool
}

func (f *fakeFlusher) ApplyClickDeltas(_ context.Context, deltas map[string]uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("simulated store failure")
	}
	cp := make(map[string]uint64, len(deltas))
	for k, v := range deltas {
		cp[k] = v
	}
	f.applied = append(f.applied, cp)
	return nil
}

func TestAccumulator_IncrementThenManualFlush(t *testing.T) {
	f := &fakeFlusher{}
	a := New(f, Config{FlushInterval: time.Hour}, nil)

	a.Increment("abc")
	a.Increment("abc")
	a.Increment("xyz")
	assert.Equal(t, uint64(3), a.Buffered())

	require.NoError(t, a.Flush(context.Background(), "manual"))
	assert.Equal(t, uint64(0), a.Buffered())

	require.Len(t, f.applied, 1)
	assert.Equal(t, uint64(2), f.applied[0]["abc"])
	assert.Equal(t, uint64(1), f.applied[0]["xyz"])
}

func TestAccumulator_FlushWithNothingBufferedIsNoop(t *testing.T) {
	f := &fakeFlusher{}
	a := New(f, Config{FlushInterval: time.Hour}, nil)

	require.NoError(t, a.Flush(context.Background(), "manual"))
	assert.Empty(t, f.applied)
}

func TestAccumulator_FailedFlushRestoresDeltas(t *testing.T) {
	f := &fakeFlusher{failNext: true}
	a := New(f, Config{FlushInterval: time.Hour}, nil)

	a.Increment("abc")
	err := a.Flush(context.Background(), "manual")
	require.Error(t, err)

	assert.Equal(t, uint64(1), a.Buffered(), "failed flush must restore the buffered delta")

	require.NoError(t, a.Flush(context.Background(), "manual"))
	require.Len(t, f.applied, 1)
	assert.Equal(t, uint64(1), f.applied[0]["abc"])
}

func TestAccumulator_ThresholdTriggersAsyncFlush(t *testing.T) {
	f := &fakeFlusher{}
	a := New(f, Config{FlushInterval: time.Hour, FlushThreshold: 2}, nil)

	a.Increment("abc")
	a.Increment("abc")

	require.Eventually(t, func() bool {
		return a.Buffered() == 0
	}, time.Second, 5*time.Millisecond)

	require.Len(t, f.applied, 1)
	assert.Equal(t, uint64(2), f.applied[0]["abc"])
}

func TestAccumulator_ConcurrentFlushesDoNotDoubleFlush(t *testing.T) {
	f := &fakeFlusher{}
	a := New(f, Config{FlushInterval: time.Hour}, nil)
	a.Increment("abc")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = a.Flush(context.Background(), "manual")
		}()
	}
	wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.LessOrEqual(t, len(f.applied), 1)
}

func TestAccumulator_StopFlushesRemainingClicks(t *testing.T) {
	f := &fakeFlusher{}
	a := New(f, Config{FlushInterval: time.Hour}, nil)
	a.Start(context.Background())

	a.Increment("abc")
	a.Stop(context.Background())

	require.Len(t, f.applied, 1)
	assert.Equal(t, uint64(1), f.applied[0]["abc"])
}
