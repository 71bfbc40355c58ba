package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/statepage/internal/session"
)

const defaultPurgeInterval = 10 * time.Minute

// RunPurger periodically removes expired sessions until ctx is done.
func RunPurger(ctx context.Context, p session.Purger, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = defaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				logger.Error("session purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions purged", zap.Int64("count", n))
			}
		}
	}
}

// StartPurger runs RunPurger in its own goroutine under a child of ctx. The
// returned stop cancels it and blocks until the goroutine has returned, so the
// store can be closed safely afterwards.
func StartPurger(ctx context.Context, p session.Purger, interval time.Duration, logger *zap.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		RunPurger(ctx, p, interval, logger)
	}()
	return func() {
		cancel()
		<-done
	}
}
