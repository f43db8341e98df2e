// Package reload coordinates coalesced reloads of the Data (link table +
// cache) and Config (runtime configuration) targets, triggered from
// in-process callers, OS signals, or a periodic timer.
package reload

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Target names a reloadable subsystem.
type Target string

const (
	Data   Target = "data"
	Config Target = "config"
)

// Func performs one reload of a Target. It should be idempotent and safe
// to call repeatedly.
type Func func(ctx context.Context) error

type targetState struct {
	running atomic.Bool
	pending atomic.Bool
	fn      Func
	mu      sync.Mutex
}

// Coordinator coalesces concurrent reload requests for the same target:
// a request arriving while one is already running marks pending and
// returns immediately rather than running a second reload in parallel;
// the running reload re-runs once more after it finishes if pending was
// set.
type Coordinator struct {
	logger  *slog.Logger
	targets map[Target]*targetState
	cancel  context.CancelFunc
}

// New builds a Coordinator for the Data and Config targets with no reload
// functions bound; Register binds them. Notify on a target with no
// registered function is a no-op.
func New(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		logger: logger,
		targets: map[Target]*targetState{
			Data:   {},
			Config: {},
		},
	}
}

// Register binds fn as the reload implementation for target.
func (c *Coordinator) Register(target Target, fn Func) {
	c.targets[target].mu.Lock()
	defer c.targets[target].mu.Unlock()
	c.targets[target].fn = fn
}

// Notify triggers a reload of target. If a reload for that target is
// already running, this call marks it pending and returns nil without
// waiting; the pending run is picked up by the in-flight goroutine.
func (c *Coordinator) Notify(ctx context.Context, target Target) error {
	st, ok := c.targets[target]
	if !ok || st.fn == nil {
		return nil
	}

	if !st.running.CompareAndSwap(false, true) {
		st.pending.Store(true)
		return nil
	}

	go c.run(ctx, target, st)
	return nil
}

func (c *Coordinator) run(ctx context.Context, target Target, st *targetState) {
	defer st.running.Store(false)
	for {
		st.mu.Lock()
		fn := st.fn
		st.mu.Unlock()

		if err := fn(ctx); err != nil {
			c.logger.Error("reload failed", "target", target, "error", err)
		} else {
			c.logger.Info("reload complete", "target", target)
		}

		if !st.pending.CompareAndSwap(true, false) {
			return
		}
	}
}

// ListenSignals registers SIGUSR1 -> Data and SIGHUP -> Config and runs
// until ctx is canceled or Stop is called.
func (c *Coordinator) ListenSignals(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGHUP)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case sig := <-ch:
				switch sig {
				case syscall.SIGUSR1:
					_ = c.Notify(ctx, Data)
				case syscall.SIGHUP:
					_ = c.Notify(ctx, Config)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the signal listener started by ListenSignals.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}
