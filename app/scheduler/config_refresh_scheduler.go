// Package scheduler
package scheduler

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/amirphl/fuel-pricing-config/utils"
)

// CacheRefresher is the part of the configuration flow the scheduler drives.
// Keeping it small lets tests hand in a stub.
type CacheRefresher interface {
	RefreshCache(ctx context.Context) (int, error)
}

// ConfigRefreshScheduler periodically re-resolves REAL_TIME configurations into the cache
type ConfigRefreshScheduler struct {
	refresher CacheRefresher
	interval  time.Duration
	timeout   time.Duration
	logger    *log.Logger

	running atomic.Bool
}

func NewConfigRefreshScheduler(refresher CacheRefresher, interval, timeout time.Duration, logger *log.Logger) *ConfigRefreshScheduler {
	if interval <= 0 {
		interval = utils.CacheRefreshInterval
	}
	if timeout <= 0 {
		timeout = interval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ConfigRefreshScheduler{
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start launches the refresh loop in a background goroutine and returns a stop function.
// The first refresh runs immediately.
func (s *ConfigRefreshScheduler) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// RunOnce performs a single refresh. Overlapping runs are skipped.
func (s *ConfigRefreshScheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Printf("scheduler: cache refresh still running, skipping tick")
		return
	}
	defer s.running.Store(false)

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	n, err := s.refresher.RefreshCache(rctx)
	if err != nil {
		s.logger.Printf("scheduler: cache refresh failed after %d entries: %v", n, err)
		return
	}
	s.logger.Printf("scheduler: refreshed %d configuration cache entries in %s", n, time.Since(started).Round(time.Millisecond))
}
