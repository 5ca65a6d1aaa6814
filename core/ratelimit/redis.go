package ratelimit

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// checkScript atomically bumps the window counter and arms its expiry.
// Returns {count, pttl}.
var checkScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisStore is a Limiter backed by a shared Redis instance, for deployments
// where per-process counters are not acceptable. Unlike Store, denied checks
// also bump the counter; admissions are still capped at MaxRequests.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Limiter = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Check(ctx context.Context, userID, operation string, cfg Config) (Result, error) {
	key := buildKey(cfg.KeyPrefix, userID, operation)

	vals, err := checkScript.Run(ctx, s.client, []string{key}, cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, errors.Wrap(err, "checking rate limit")
	}
	if len(vals) != 2 {
		return Result{}, errors.Errorf("checking rate limit: unexpected script reply %v", vals)
	}
	count, pttl := vals[0], vals[1]

	resetAt := NowFunc().Add(time.Duration(pttl) * time.Millisecond)
	if count > int64(cfg.MaxRequests) {
		return Result{
			Allowed:    false,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: int(math.Ceil(float64(pttl) / 1000)),
		}, nil
	}

	return Result{
		Allowed:   true,
		Remaining: cfg.MaxRequests - int(count),
		ResetAt:   resetAt,
	}, nil
}
