package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "faucet:quota"

// consumeScript performs the whole fixed-window transition in one
// atomic step: first use of a key starts a window holding the full
// allotment minus the consumed point; later uses decrement while points
// remain; an exhausted key is rejected with the window's remaining TTL
// and the TTL is left untouched, so repeated rejected attempts do not
// push the reset time out.
var consumeScript = redis.NewScript(`
local remaining = redis.call('GET', KEYS[1])
if remaining == false then
  redis.call('SET', KEYS[1], tonumber(ARGV[1]) - 1, 'PX', ARGV[2])
  return {1, tonumber(ARGV[1]) - 1, 0}
end
remaining = tonumber(remaining)
if remaining > 0 then
  remaining = redis.call('DECR', KEYS[1])
  return {1, remaining, 0}
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  ttl = 0
end
return {0, 0, ttl}
`)

// RedisStore implements Store on a Redis instance shared by all
// service instances.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// RedisStoreOption customizes a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix overrides the default key namespace.
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore constructs a store over the given client.
func NewRedisStore(rdb *redis.Client, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{rdb: rdb, prefix: defaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Consume implements Store.
func (s *RedisStore) Consume(ctx context.Context, key string, points int64, window time.Duration) (Decision, error) {
	res, err := consumeScript.Run(ctx, s.rdb, []string{s.prefix + ":" + key}, points, window.Milliseconds()).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("quota: redis consume failed: %w", err)
	}
	fields, ok := res.([]interface{})
	if !ok || len(fields) != 3 {
		return Decision{}, fmt.Errorf("quota: unexpected script reply %T", res)
	}
	allowed, _ := fields[0].(int64)
	remaining, _ := fields[1].(int64)
	ttlMillis, _ := fields[2].(int64)

	d := Decision{Allowed: allowed == 1, Remaining: remaining}
	if !d.Allowed {
		d.Remaining = 0
		d.RetryAfter = time.Duration(ttlMillis) * time.Millisecond
	}
	return d, nil
}

// Ping verifies the shared store is reachable, for startup checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
