// Package accumulator buffers per-code click deltas in memory and flushes
// them to the Store in batches, trading immediate durability for write
// throughput on the redirect hot path.
package accumulator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

// Flusher persists accumulated deltas. internal/store.Store.ApplyClickDeltas
// satisfies this.
type Flusher interface {
	ApplyClickDeltas(ctx context.Context, deltas map[string]uint64) error
}

// Config tunes flush cadence.
type Config struct {
	FlushInterval    time.Duration
	FlushThreshold   uint64 // total buffered clicks that triggers an immediate flush
}

// Accumulator buffers Increment calls and flushes them on an interval, a
// threshold, or an explicit Flush call. Only one flush runs at a time;
// a concurrent trigger is a no-op rather than queuing a second flush.
type Accumulator struct {
	mu      sync.Mutex
	deltas  map[string]uint64
	total   uint64
	flusher Flusher
	cfg     Config
	logger  *slog.Logger
	flight  atomic.Bool

	stopCh chan struct{}
	doneCh chan struct{}

	stats *metrics
}

var (
	metricsInstance *metrics
	metricsOnce     sync.Once
)

// metrics holds the process-wide accumulator counters. Every Accumulator
// shares the same instance so repeated New calls never hit promauto's
// duplicate-registration panic.
type metrics struct {
	flushedTotal  *prometheus.CounterVec
	failedTotal   prometheus.Counter
	bufferedGauge prometheus.Gauge
}

func newMetrics() *metrics {
	metricsOnce.Do(func() {
		metricsInstance = &metrics{
			flushedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "shortlinkd_accumulator_flushed_clicks_total",
				Help: "Clicks successfully persisted by flush trigger.",
			}, []string{"trigger"}),
			failedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "shortlinkd_accumulator_flush_failures_total",
				Help: "Flush attempts that failed and were restored to the buffer.",
			}),
			bufferedGauge: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "shortlinkd_accumulator_buffered_clicks",
				Help: "Clicks currently buffered awaiting flush.",
			}),
		}
	})
	return metricsInstance
}

// New builds an Accumulator. Start must be called to run the interval
// timer; Increment and Flush work without it.
func New(flusher Flusher, cfg Config, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 60 * time.Second
	}
	return &Accumulator{
		deltas:  make(map[string]uint64),
		flusher: flusher,
		cfg:     cfg,
		logger:  logger,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		stats:   newMetrics(),
	}
}

// Increment records one click against code. It never blocks on a flush.
func (a *Accumulator) Increment(code string) {
	a.mu.Lock()
	a.deltas[code]++
	a.total++
	total := a.total
	a.stats.bufferedGauge.Set(float64(total))
	a.mu.Unlock()

	if a.cfg.FlushThreshold > 0 && total >= a.cfg.FlushThreshold {
		go a.Flush(context.Background(), "threshold")
	}
}

// snapshot removes and returns every currently buffered delta, so
// concurrent Increment calls during the flush land in a fresh map rather
// than being lost or double-counted.
func (a *Accumulator) snapshot() map[string]uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.deltas) == 0 {
		return nil
	}
	snap := a.deltas
	a.deltas = make(map[string]uint64)
	a.total = 0
	a.stats.bufferedGauge.Set(0)
	return snap
}

// restore merges snap back into the live buffer after a failed flush,
// summing against any deltas accumulated concurrently in the meantime.
func (a *Accumulator) restore(snap map[string]uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for code, n := range snap {
		a.deltas[code] += n
		a.total += n
	}
	a.stats.bufferedGauge.Set(float64(a.total))
}

// Flush runs one flush cycle if none is already in flight. trigger labels
// the flushedTotal metric ("interval", "threshold", "manual", "shutdown").
func (a *Accumulator) Flush(ctx context.Context, trigger string) error {
	if !a.flight.CompareAndSwap(false, true) {
		return nil
	}
	defer a.flight.Store(false)

	snap := a.snapshot()
	if snap == nil {
		return nil
	}

	var sum uint64
	for _, n := range snap {
		sum += n
	}

	if err := a.flusher.ApplyClickDeltas(ctx, snap); err != nil {
		a.restore(snap)
		a.stats.failedTotal.Inc()
		a.logger.Warn("click flush failed, deltas restored", "codes", len(snap), "clicks", sum, "error", err)
		return domain.NewFlushFailedError(err)
	}

	a.stats.flushedTotal.WithLabelValues(trigger).Add(float64(sum))
	a.logger.Debug("click flush complete", "trigger", trigger, "codes", len(snap), "clicks", sum)
	return nil
}

// Start runs the interval flush loop until Stop is called.
func (a *Accumulator) Start(ctx context.Context) {
	go func() {
		defer close(a.doneCh)
		ticker := time.NewTicker(a.cfg.FlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.Flush(ctx, "interval")
			case <-a.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the interval loop and performs one final flush so buffered
// clicks are not lost on shutdown.
func (a *Accumulator) Stop(ctx context.Context) {
	close(a.stopCh)
	<-a.doneCh
	_ = a.Flush(ctx, "shutdown")
}

// Buffered reports the total clicks currently buffered, for diagnostics.
func (a *Accumulator) Buffered() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}
