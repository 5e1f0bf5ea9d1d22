package services

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRecorder struct {
	mu     sync.Mutex
	counts map[uint]int
	last   map[uint]time.Time
	err    error
	block  chan struct{}
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: map[uint]int{}, last: map[uint]time.Time{}}
}

func (r *countingRecorder) IncrementAccessCount(_ context.Context, id uint, at time.Time) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id]++
	r.last[id] = at
	return r.err
}

func (r *countingRecorder) count(id uint) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[id]
}

func TestQueuedAccessTracker(t *testing.T) {
	t.Run("close drains queued hits", func(t *testing.T) {
		rec := newCountingRecorder()
		tracker := NewAccessTracker(rec, 64, 2, time.Second, log.New(io.Discard, "", 0))
		clock := newStepClock()
		tracker.clock = clock

		for i := 0; i < 10; i++ {
			tracker.Track(1)
		}
		tracker.Track(2)
		tracker.Close()

		assert.Equal(t, 10, rec.count(1))
		assert.Equal(t, 1, rec.count(2))
		assert.Equal(t, clock.Now(), rec.last[2])
	})

	t.Run("full queue drops hits without blocking", func(t *testing.T) {
		rec := newCountingRecorder()
		rec.block = make(chan struct{})
		tracker := NewAccessTracker(rec, 1, 1, time.Second, log.New(io.Discard, "", 0))

		done := make(chan struct{})
		go func() {
			for i := 0; i < 50; i++ {
				tracker.Track(7)
			}
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Track blocked on a full queue")
		}

		close(rec.block)
		tracker.Close()
		assert.Less(t, rec.count(7), 50)
		assert.GreaterOrEqual(t, rec.count(7), 1)
	})

	t.Run("tracking after close is ignored", func(t *testing.T) {
		rec := newCountingRecorder()
		tracker := NewAccessTracker(rec, 4, 1, time.Second, log.New(io.Discard, "", 0))
		tracker.Close()
		tracker.Close()
		tracker.Track(1)
		assert.Zero(t, rec.count(1))
	})

	t.Run("store failures keep the worker running", func(t *testing.T) {
		rec := newCountingRecorder()
		rec.err = errors.New("connection reset")
		tracker := NewAccessTracker(rec, 4, 1, time.Second, log.New(io.Discard, "", 0))
		tracker.Track(3)
		tracker.Track(3)
		tracker.Close()
		assert.Equal(t, 2, rec.count(3))
	})
}
