package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

type failingStore struct{}

func (failingStore) Increment(context.Context, string, time.Duration) (int, time.Time, error) {
	return 0, time.Time{}, errors.New("boom")
}

func TestPresets(t *testing.T) {
	tests := []struct {
		policy Policy
		code   string
		max    int
	}{
		{Strict, "STRICT_RATE_LIMIT_EXCEEDED", 5},
		{Standard, "RATE_LIMIT_EXCEEDED", 200},
		{Auth, "AUTH_RATE_LIMIT_EXCEEDED", 10},
	}

	for _, tt := range tests {
		t.Run(tt.policy.Name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.policy.ErrorCode())
			assert.Equal(t, tt.max, tt.policy.Max)
			assert.Equal(t, 900, tt.policy.RetryAfter())
		})
	}
}

func TestLimiter_RejectsAfterMaxAndResetsAfterWindow(t *testing.T) {
	clock := newClock()
	limiter := New(Strict, NewMemoryStore(WithClock(clock.Now)), zap.NewNop())
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d := limiter.Allow(ctx, "10.0.0.1")
		require.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, i, d.Count)
		assert.Equal(t, 5-i, d.Remaining)
	}

	sixth := limiter.Allow(ctx, "10.0.0.1")
	assert.False(t, sixth.Allowed)
	assert.Equal(t, 0, sixth.Remaining)
	assert.Equal(t, clock.Now().Add(15*time.Minute), sixth.ResetAt)

	// Other keys have their own counter
	assert.True(t, limiter.Allow(ctx, "10.0.0.2").Allowed)

	clock.Advance(15*time.Minute + time.Second)

	after := limiter.Allow(ctx, "10.0.0.1")
	assert.True(t, after.Allowed)
	assert.Equal(t, 1, after.Count)
}

func TestLimiter_InstancesAreIndependent(t *testing.T) {
	a := New(Policy{Name: "A", Window: time.Minute, Max: 1}, nil, nil)
	b := New(Policy{Name: "A", Window: time.Minute, Max: 1}, nil, nil)
	ctx := context.Background()

	assert.True(t, a.Allow(ctx, "k").Allowed)
	assert.False(t, a.Allow(ctx, "k").Allowed)
	assert.True(t, b.Allow(ctx, "k").Allowed)
}

func TestLimiter_EmptyKeyIsUnknown(t *testing.T) {
	store := NewMemoryStore()
	limiter := New(Policy{Name: "P", Window: time.Minute, Max: 1}, store, nil)

	limiter.Allow(context.Background(), "")
	limiter.Allow(context.Background(), "unknown")

	assert.Equal(t, 1, store.Len())
}

func TestLimiter_StoreErrorAdmits(t *testing.T) {
	limiter := New(Strict, failingStore{}, zap.NewNop())

	d := limiter.Allow(context.Background(), "k")

	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Remaining)
}

func TestLimiter_ConcurrentIncrementsAreAtomic(t *testing.T) {
	const callers = 100
	limiter := New(Policy{Name: "C", Window: time.Minute, Max: 50}, nil, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		seen    = make(map[int]bool)
		allowed int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d := limiter.Allow(context.Background(), "shared")
			mu.Lock()
			defer mu.Unlock()
			seen[d.Count] = true
			if d.Allowed {
				allowed++
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, callers)
	assert.Equal(t, 50, allowed)
}

func TestMemoryStore_SweepsExpiredCounters(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(WithClock(clock.Now))
	store.sweepEvery = 2
	ctx := context.Background()

	_, _, _ = store.Increment(ctx, "old", time.Minute)
	clock.Advance(2 * time.Minute)
	_, _, _ = store.Increment(ctx, "new", time.Minute)

	assert.Equal(t, 1, store.Len())
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	limiter := New(Policy{Name: "R", Window: time.Minute, Max: 2}, NewRedisStore(client, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "1.2.3.4").Allowed)
	assert.True(t, limiter.Allow(ctx, "1.2.3.4").Allowed)
	third := limiter.Allow(ctx, "1.2.3.4")
	assert.False(t, third.Allowed)
	assert.Equal(t, 3, third.Count)
	assert.True(t, mr.Exists("rl:R:1.2.3.4"))

	mr.FastForward(61 * time.Second)

	reset := limiter.Allow(ctx, "1.2.3.4")
	assert.True(t, reset.Allowed)
	assert.Equal(t, 1, reset.Count)
}

func TestRedisStore_FallsBackWhenUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  5 * time.Millisecond,
		ReadTimeout:  5 * time.Millisecond,
		WriteTimeout: 5 * time.Millisecond,
		MaxRetries:   -1,
	})
	defer client.Close()
	limiter := New(Policy{Name: "R", Window: time.Minute, Max: 1}, NewRedisStore(client, zap.NewNop()), zap.NewNop())
	ctx := context.Background()

	first := limiter.Allow(ctx, "k")
	second := limiter.Allow(ctx, "k")

	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Count)
	assert.False(t, second.Allowed)
}
