package dedup

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newRedisGuard(t *testing.T, clock *fakeClock) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisGuard(rdb, Options{Cooldown: 24 * time.Hour, Now: clock.Now}), mr
}

// guardSuite runs the shared contract against any backend.
func guardSuite(t *testing.T, build func(t *testing.T, clock *fakeClock) Guard) {
	t.Run("acquire then duplicate", func(t *testing.T) {
		clock := newFakeClock()
		g := build(t, clock)
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx, "fp_a", "bk-1"))
		clock.Advance(time.Hour)

		err := g.Acquire(ctx, "fp_a", "bk-2")
		require.ErrorIs(t, err, ErrDuplicateBooking)
		var dup *DuplicateError
		require.True(t, errors.As(err, &dup))
		assert.Equal(t, "bk-1", dup.Existing.BookingID)
		assert.Equal(t, time.Hour, dup.Existing.Age)

		existing, err := g.CheckExisting(ctx, "fp_a")
		require.NoError(t, err)
		assert.True(t, existing.Exists)
		assert.Equal(t, "bk-1", existing.BookingID)
	})

	t.Run("cooldown expiry frees the fingerprint", func(t *testing.T) {
		clock := newFakeClock()
		g := build(t, clock)
		ctx := context.Background()

		require.NoError(t, g.Acquire(ctx, "fp_a", "bk-1"))
		clock.Advance(24*time.Hour + time.Second)

		existing, err := g.CheckExisting(ctx, "fp_a")
		require.NoError(t, err)
		assert.False(t, existing.Exists)
		require.NoError(t, g.Acquire(ctx, "fp_a", "bk-2"))

		existing, err = g.CheckExisting(ctx, "fp_a")
		require.NoError(t, err)
		assert.Equal(t, "bk-2", existing.BookingID)
	})

	t.Run("fingerprints are independent", func(t *testing.T) {
		g := build(t, newFakeClock())
		ctx := context.Background()
		require.NoError(t, g.Acquire(ctx, "fp_a", "bk-1"))
		require.NoError(t, g.Acquire(ctx, "fp_b", "bk-2"))
	})

	t.Run("release only drops own reservation", func(t *testing.T) {
		g := build(t, newFakeClock())
		ctx := context.Background()
		require.NoError(t, g.Acquire(ctx, "fp_a", "bk-1"))

		require.NoError(t, g.Release(ctx, "fp_a", "someone-else"))
		existing, err := g.CheckExisting(ctx, "fp_a")
		require.NoError(t, err)
		assert.True(t, existing.Exists)

		require.NoError(t, g.Release(ctx, "fp_a", "bk-1"))
		existing, err = g.CheckExisting(ctx, "fp_a")
		require.NoError(t, err)
		assert.False(t, existing.Exists)
	})

	t.Run("missing fingerprint", func(t *testing.T) {
		g := build(t, newFakeClock())
		require.ErrorIs(t, g.Acquire(context.Background(), "", "bk-1"), ErrMissingFingerprint)
		_, err := g.CheckExisting(context.Background(), "")
		require.ErrorIs(t, err, ErrMissingFingerprint)
	})

	t.Run("concurrent acquires yield one winner", func(t *testing.T) {
		g := build(t, newFakeClock())
		ctx := context.Background()

		var (
			wg   sync.WaitGroup
			wins atomic.Int32
			dups atomic.Int32
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := g.Acquire(ctx, "fp_race", "bk-"+string(rune('a'+i)))
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrDuplicateBooking):
					dups.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(15), dups.Load())
	})
}

func TestMemoryGuard(t *testing.T) {
	guardSuite(t, func(t *testing.T, clock *fakeClock) Guard {
		return NewMemoryGuard(Options{Cooldown: 24 * time.Hour, Now: clock.Now})
	})
}

func TestRedisGuard(t *testing.T) {
	guardSuite(t, func(t *testing.T, clock *fakeClock) Guard {
		g, _ := newRedisGuard(t, clock)
		return g
	})
}

func TestRedisGuardSetsExpiry(t *testing.T) {
	g, mr := newRedisGuard(t, newFakeClock())
	require.NoError(t, g.Acquire(context.Background(), "fp_ttl", "bk-1"))

	assert.Equal(t, 24*time.Hour, mr.TTL(redisKeyPrefix+"fp_ttl"))
	assert.Equal(t, "bk-1", mr.HGet(redisKeyPrefix+"fp_ttl", "booking_id"))
}

func TestRedisGuardReadsSharedMark(t *testing.T) {
	clock := newFakeClock()
	g, mr := newRedisGuard(t, clock)
	at := clock.Now().Add(-2 * time.Hour).UnixMilli()
	mr.HSet(redisKeyPrefix+"fp_shared", "booking_id", "bk-other", "at", strconv.FormatInt(at, 10))

	existing, err := g.CheckExisting(context.Background(), "fp_shared")
	require.NoError(t, err)
	assert.True(t, existing.Exists)
	assert.Equal(t, "bk-other", existing.BookingID)
	assert.Equal(t, 2*time.Hour, existing.Age)

	mr.HSet(redisKeyPrefix+"fp_bad", "booking_id", "bk-x", "at", "yesterday")
	_, err = g.CheckExisting(context.Background(), "fp_bad")
	assert.Error(t, err)
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, DefaultCooldown, opts.Cooldown)
	assert.NotNil(t, opts.Now)
}
