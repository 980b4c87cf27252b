package idempotency

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// StartJanitor purges expired entries every interval until the returned stop
// function is called. A non-positive interval starts nothing.
func StartJanitor(store Store, interval time.Duration, batch int, now func() time.Time, logger *zap.Logger) (stop func()) {
	if store == nil || interval <= 0 {
		return func() {}
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(interval)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCtx, runCancel := context.WithTimeout(ctx, time.Minute)
				removed, err := store.Purge(runCtx, now().UTC(), batch)
				runCancel()
				if err != nil {
					logger.Warn("idempotency purge failed", zap.Error(err))
					continue
				}
				if removed > 0 {
					logger.Debug("idempotency purge removed entries", zap.Int("count", removed))
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}
