package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count       int
	windowStart time.Time
}

// MemoryStore keeps counters in process memory. Expired counters are reset
// on their next increment and swept every sweepEvery increments.
type MemoryStore struct {
	mu         sync.Mutex
	counters   map[string]*counter
	now        func() time.Time
	calls      int
	sweepEvery int
}

// MemoryOption configures a MemoryStore
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		counters:   make(map[string]*counter),
		now:        time.Now,
		sweepEvery: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment implements Store.
func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Time, error) {
	now := s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls%s.sweepEvery == 0 {
		s.sweep(now, window)
	}

	c, ok := s.counters[key]
	if !ok || now.Sub(c.windowStart) > window {
		c = &counter{windowStart: now}
		s.counters[key] = c
	}
	c.count++

	return c.count, c.windowStart.Add(window), nil
}

// Len returns the number of live counters
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

func (s *MemoryStore) sweep(now time.Time, window time.Duration) {
	for k, c := range s.counters {
		if now.Sub(c.windowStart) > window {
			delete(s.counters, k)
		}
	}
}
