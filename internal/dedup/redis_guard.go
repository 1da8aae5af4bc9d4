package dedup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "studio:dedup:"

// acquireScript reserves KEYS[1] unless a mark younger than the cooldown
// exists. ARGV: booking id, now (ms), cooldown (ms).
// Returns {1, booking id, now} on success or {0, existing id, existing ms}.
var acquireScript = redis.NewScript(`
local cur = redis.call('HMGET', KEYS[1], 'booking_id', 'at')
if cur[1] and cur[2] then
	if tonumber(ARGV[2]) - tonumber(cur[2]) < tonumber(ARGV[3]) then
		return {0, cur[1], cur[2]}
	end
end
redis.call('HSET', KEYS[1], 'booking_id', ARGV[1], 'at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return {1, ARGV[1], ARGV[2]}
`)

// releaseScript deletes KEYS[1] only when it still holds ARGV[1].
var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'booking_id') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisGuard keeps marks in Redis hashes that expire with the cooldown.
type RedisGuard struct {
	rdb  redis.Cmdable
	opts Options
}

// NewRedisGuard builds a guard on a go-redis client.
func NewRedisGuard(rdb redis.Cmdable, opts Options) *RedisGuard {
	if rdb == nil {
		panic("dedup: redis client required")
	}
	return &RedisGuard{rdb: rdb, opts: opts.withDefaults()}
}

func (g *RedisGuard) key(fingerprint string) string {
	return redisKeyPrefix + fingerprint
}

func (g *RedisGuard) CheckExisting(ctx context.Context, fingerprint string) (Existing, error) {
	if fingerprint == "" {
		return Existing{}, ErrMissingFingerprint
	}
	vals, err := g.rdb.HMGet(ctx, g.key(fingerprint), "booking_id", "at").Result()
	if err != nil {
		return Existing{}, fmt.Errorf("dedup: redis lookup: %w", err)
	}
	bookingID, _ := vals[0].(string)
	atRaw, _ := vals[1].(string)
	if bookingID == "" || atRaw == "" {
		return Existing{}, nil
	}
	atMillis, err := strconv.ParseInt(atRaw, 10, 64)
	if err != nil {
		return Existing{}, fmt.Errorf("dedup: corrupt mark for %s: %w", fingerprint, err)
	}
	existing := g.existing(bookingID, atMillis)
	if existing.Age >= g.opts.Cooldown {
		if err := g.Release(ctx, fingerprint, bookingID); err != nil {
			return Existing{}, err
		}
		return Existing{}, nil
	}
	return existing, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, fingerprint, bookingID string) error {
	if fingerprint == "" {
		return ErrMissingFingerprint
	}
	now := g.opts.Now().UnixMilli()
	res, err := acquireScript.Run(ctx, g.rdb, []string{g.key(fingerprint)},
		bookingID, now, g.opts.Cooldown.Milliseconds()).Slice()
	if err != nil {
		return fmt.Errorf("dedup: redis acquire: %w", err)
	}
	if len(res) != 3 {
		return fmt.Errorf("dedup: unexpected acquire reply %v", res)
	}
	ok, _ := res[0].(int64)
	if ok == 1 {
		return nil
	}
	existingID, _ := res[1].(string)
	atRaw, _ := res[2].(string)
	atMillis, err := strconv.ParseInt(atRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("dedup: corrupt mark for %s: %w", fingerprint, err)
	}
	return &DuplicateError{Existing: g.existing(existingID, atMillis)}
}

func (g *RedisGuard) Release(ctx context.Context, fingerprint, bookingID string) error {
	err := releaseScript.Run(ctx, g.rdb, []string{g.key(fingerprint)}, bookingID).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("dedup: redis release: %w", err)
	}
	return nil
}

func (g *RedisGuard) existing(bookingID string, atMillis int64) Existing {
	at := time.UnixMilli(atMillis).UTC()
	return Existing{Exists: true, BookingID: bookingID, LastBookingAt: at, Age: g.opts.Now().Sub(at)}
}

var _ Guard = (*RedisGuard)(nil)
