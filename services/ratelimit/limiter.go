// Package ratelimit implements fixed-window request counters keyed by client
// address. A Limiter pairs a Policy with a Store; each Limiter owns its own
// counters.
package ratelimit

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Policy describes one rate limit.
type Policy struct {
	// Name is the error code prefix, e.g. AUTH_RATE_LIMIT
	Name    string
	Window  time.Duration
	Max     int
	Message string

	// KeyFunc derives the counter key from a request. When nil the caller
	// supplies the normalized client address.
	KeyFunc func(r *http.Request) string
}

// Presets
var (
	Strict = Policy{
		Name:    "STRICT_RATE_LIMIT",
		Window:  15 * time.Minute,
		Max:     5,
		Message: "Too many attempts, please try again later",
	}
	Standard = Policy{
		Name:    "RATE_LIMIT",
		Window:  15 * time.Minute,
		Max:     200,
		Message: "Too many requests, please try again later",
	}
	Auth = Policy{
		Name:    "AUTH_RATE_LIMIT",
		Window:  15 * time.Minute,
		Max:     10,
		Message: "Too many authentication attempts, please try again later",
	}
)

// ErrorCode is the code written in the 429 body.
func (p Policy) ErrorCode() string {
	return p.Name + "_EXCEEDED"
}

// RetryAfter is the window length in whole seconds.
func (p Policy) RetryAfter() int {
	return int(p.Window / time.Second)
}

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store increments the counter for key inside a window.
type Store interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Limiter applies a Policy to a Store.
type Limiter struct {
	policy Policy
	store  Store
	logger *zap.Logger
}

// New creates a Limiter. A nil store gets a fresh MemoryStore.
func New(policy Policy, store Store, logger *zap.Logger) *Limiter {
	if policy.Window <= 0 {
		policy.Window = time.Minute
	}
	if policy.Max <= 0 {
		policy.Max = 1
	}
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{
		policy: policy,
		store:  store,
		logger: logger,
	}
}

// Policy returns the limiter's policy.
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Allow counts one request for key. Store failures admit the request.
func (l *Limiter) Allow(ctx context.Context, key string) Decision {
	if key == "" {
		key = "unknown"
	}

	count, resetAt, err := l.store.Increment(ctx, l.policy.Name+":"+key, l.policy.Window)
	if err != nil {
		l.logger.Error("rate limit store failed, admitting request",
			zap.String("policy", l.policy.Name),
			zap.Error(err),
		)
		return Decision{
			Allowed:   true,
			Limit:     l.policy.Max,
			Remaining: l.policy.Max,
			ResetAt:   time.Now().UTC().Add(l.policy.Window),
		}
	}

	remaining := l.policy.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= l.policy.Max,
		Count:     count,
		Limit:     l.policy.Max,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
