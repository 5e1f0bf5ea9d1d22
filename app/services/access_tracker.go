package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/amirphl/fuel-pricing-config/utils"
)

// AccessRecorder persists one configuration read.
type AccessRecorder interface {
	IncrementAccessCount(ctx context.Context, id uint, at time.Time) error
}

// AccessTracker counts configuration reads off the request path. Track never blocks:
// when the queue is full the update is dropped.
type AccessTracker interface {
	Track(id uint)
	Close()
}

// NoopAccessTracker ignores reads.
type NoopAccessTracker struct{}

func (NoopAccessTracker) Track(uint) {}

func (NoopAccessTracker) Close() {}

type accessHit struct {
	id uint
	at time.Time
}

// QueuedAccessTracker drains a bounded queue with a fixed set of workers.
type QueuedAccessTracker struct {
	recorder AccessRecorder
	queue    chan accessHit
	timeout  time.Duration
	logger   *log.Logger
	clock    utils.Clock

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	closeOne sync.Once
}

// NewAccessTracker starts workers goroutines reading from a queue of queueSize.
func NewAccessTracker(recorder AccessRecorder, queueSize, workers int, timeout time.Duration, logger *log.Logger) *QueuedAccessTracker {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = utils.StoreTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	t := &QueuedAccessTracker{
		recorder: recorder,
		queue:    make(chan accessHit, queueSize),
		timeout:  timeout,
		logger:   logger,
		clock:    utils.SystemClock{},
	}
	t.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go t.work()
	}
	return t
}

func (t *QueuedAccessTracker) Track(id uint) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.queue <- accessHit{id: id, at: t.clock.Now()}:
	default:
		accessTrackerDropped.Inc()
	}
}

func (t *QueuedAccessTracker) work() {
	defer t.wg.Done()
	for hit := range t.queue {
		ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
		if err := t.recorder.IncrementAccessCount(ctx, hit.id, hit.at); err != nil {
			accessTrackerFailed.Inc()
			t.logger.Printf("access tracker: configuration %d: %v", hit.id, err)
		}
		cancel()
	}
}

// Close stops accepting hits and waits for queued ones to be written.
func (t *QueuedAccessTracker) Close() {
	t.closeOne.Do(func() {
		t.mu.Lock()
		t.closed = true
		close(t.queue)
		t.mu.Unlock()
		t.wg.Wait()
	})
}
