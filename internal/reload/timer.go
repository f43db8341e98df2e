package reload

import (
	"context"
	"time"
)

// RunPeriodicData triggers a Data reload every interval until ctx is
// canceled. A non-positive interval disables the timer entirely.
func (c *Coordinator) RunPeriodicData(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = c.Notify(ctx, Data)
			case <-ctx.Done():
				return
			}
		}
	}()
}
