package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	t.Run("entries expire at their ttl", func(t *testing.T) {
		clock := newStepClock()
		c := NewMemoryCache(clock)
		require.NoError(t, c.Set(ctx, "config:A", []byte("1"), time.Minute))

		v, ok, err := c.Get(ctx, "config:A")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)

		clock.advance(time.Minute)
		_, ok, err = c.Get(ctx, "config:A")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, c.Len())
	})

	t.Run("zero ttl stores nothing", func(t *testing.T) {
		c := NewMemoryCache(newStepClock())
		require.NoError(t, c.Set(ctx, "config:A", []byte("1"), 0))
		assert.Zero(t, c.Len())
	})

	t.Run("stored values are copies", func(t *testing.T) {
		c := NewMemoryCache(newStepClock())
		value := []byte("abc")
		require.NoError(t, c.Set(ctx, "k", value, time.Minute))
		value[0] = 'x'

		got, _, _ := c.Get(ctx, "k")
		assert.Equal(t, []byte("abc"), got)
		got[1] = 'y'
		again, _, _ := c.Get(ctx, "k")
		assert.Equal(t, []byte("abc"), again)
	})

	t.Run("delete by key and prefix", func(t *testing.T) {
		c := NewMemoryCache(newStepClock())
		for _, k := range []string{"config:A:system:global", "config:A:t1:global", "config:B:system:global", "price:PETROL:COCO:2025-01-15:"} {
			require.NoError(t, c.Set(ctx, k, []byte("v"), time.Minute))
		}

		require.NoError(t, c.Delete(ctx, "config:B:system:global", "missing"))
		assert.Equal(t, 3, c.Len())

		require.NoError(t, c.DeletePrefix(ctx, "config:A:"))
		assert.Equal(t, 1, c.Len())
		_, ok, _ := c.Get(ctx, "price:PETROL:COCO:2025-01-15:")
		assert.True(t, ok)
	})

	t.Run("sweep removes only expired entries", func(t *testing.T) {
		clock := newStepClock()
		c := NewMemoryCache(clock)
		require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
		require.NoError(t, c.Set(ctx, "long", []byte("v"), time.Hour))

		clock.advance(time.Minute)
		assert.Equal(t, 1, c.Sweep())
		assert.Equal(t, 1, c.Len())
	})

	t.Run("janitor stops when cancelled", func(t *testing.T) {
		clock := newStepClock()
		c := NewMemoryCache(clock)
		require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
		clock.advance(time.Minute)

		stop := c.StartJanitor(ctx, 10*time.Millisecond, nil)
		defer stop()
		assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 10*time.Millisecond)
	})
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return mr, rc
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()

	t.Run("get set and delete", func(t *testing.T) {
		mr, rc := newMiniredisClient(t)
		c := NewRedisCache(rc, "fuel:")

		require.NoError(t, c.Set(ctx, "config:A", []byte("1"), time.Minute))
		assert.True(t, mr.Exists("fuel:config:A"))

		v, ok, err := c.Get(ctx, "config:A")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)

		require.NoError(t, c.Delete(ctx, "config:A"))
		_, ok, err = c.Get(ctx, "config:A")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("entries expire at their ttl", func(t *testing.T) {
		mr, rc := newMiniredisClient(t)
		c := NewRedisCache(rc, "fuel:")
		require.NoError(t, c.Set(ctx, "price:PETROL:COCO:2025-01-15:", []byte("v"), 30*time.Minute))
		assert.Equal(t, 30*time.Minute, mr.TTL("fuel:price:PETROL:COCO:2025-01-15:"))

		mr.FastForward(30 * time.Minute)
		_, ok, err := c.Get(ctx, "price:PETROL:COCO:2025-01-15:")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("zero ttl stores nothing", func(t *testing.T) {
		mr, rc := newMiniredisClient(t)
		c := NewRedisCache(rc, "fuel:")
		require.NoError(t, c.Set(ctx, "config:A", []byte("1"), 0))
		assert.False(t, mr.Exists("fuel:config:A"))
	})

	t.Run("prefix delete stays inside the namespace", func(t *testing.T) {
		mr, rc := newMiniredisClient(t)
		require.NoError(t, mr.Set("other:config:A", "keep"))
		c := NewRedisCache(rc, "fuel:")
		for _, k := range []string{"config:A", "config:B", "price:X"} {
			require.NoError(t, c.Set(ctx, k, []byte("v"), time.Minute))
		}

		require.NoError(t, c.DeletePrefix(ctx, "config:"))
		assert.False(t, mr.Exists("fuel:config:A"))
		assert.False(t, mr.Exists("fuel:config:B"))
		assert.True(t, mr.Exists("fuel:price:X"))
		assert.True(t, mr.Exists("other:config:A"))
	})

	t.Run("server errors are returned", func(t *testing.T) {
		mr, rc := newMiniredisClient(t)
		c := NewRedisCache(rc, "fuel:")
		mr.SetError("LOADING")
		_, _, err := c.Get(ctx, "config:A")
		assert.Error(t, err)
		assert.Error(t, c.Set(ctx, "config:A", []byte("1"), time.Minute))
	})
}
