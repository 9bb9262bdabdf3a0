package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var incrementScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

// RedisStore shares counters between gateway replicas. Redis failures fall
// back to a process-local MemoryStore.
type RedisStore struct {
	client   redis.UniversalClient
	prefix   string
	timeout  time.Duration
	fallback *MemoryStore
	logger   *zap.Logger
}

// NewRedisStore creates a RedisStore on client
func NewRedisStore(client redis.UniversalClient, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		client:   client,
		prefix:   "rl:",
		timeout:  2 * time.Second,
		fallback: NewMemoryStore(),
		logger:   logger,
	}
}

// Increment implements Store.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, resetAt, err := s.increment(ctx, key, window)
	if err != nil {
		s.logger.Warn("redis rate limit store unavailable, using local counters",
			zap.String("key", key),
			zap.Error(err),
		)
		return s.fallback.Increment(ctx, key, window)
	}
	return count, resetAt, nil
}

func (s *RedisStore) increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 2 {
		return 0, time.Time{}, fmt.Errorf("unexpected script result %v", res)
	}
	count, _ := vals[0].(int64)
	ttlMs, _ := vals[1].(int64)
	if ttlMs < 0 {
		ttlMs = window.Milliseconds()
	}

	return int(count), time.Now().UTC().Add(time.Duration(ttlMs) * time.Millisecond), nil
}
