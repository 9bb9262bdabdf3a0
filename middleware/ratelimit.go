package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services/ratelimit"
	"github.com/upb/crm-gateway/utils"
	"go.uber.org/zap"
)

// Rate limit response headers
const (
	HeaderRateLimitLimit     = "RateLimit-Limit"
	HeaderRateLimitRemaining = "RateLimit-Remaining"
	HeaderRateLimitReset     = "RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateLimit counts every request against limiter. The key is the policy's
// KeyFunc result, or the normalized client address.
func RateLimit(limiter *ratelimit.Limiter, events EventRecorder, logger *zap.Logger) func(http.Handler) http.Handler {
	events = recorderOrNop(events)
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := limiter.Policy()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			key := ""
			if policy.KeyFunc != nil {
				key = policy.KeyFunc(r)
			}
			if key == "" {
				key = GetClientIPFromContext(ctx)
			}
			if key == "" {
				key = UnknownClientIP
			}

			decision := limiter.Allow(ctx, key)

			h := w.Header()
			h.Set(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
			h.Set(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
			h.Set(HeaderRateLimitReset, strconv.Itoa(secondsUntil(decision.ResetAt)))

			if !decision.Allowed {
				ip := GetClientIPFromContext(ctx)
				logger.Warn("rate limit exceeded",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("policy", policy.Name),
					zap.String("ip", ip),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("count", decision.Count),
					zap.Int("limit", decision.Limit))

				events.Record(ctx, NewRequestEvent(r, models.SecurityEventRateLimited).
					WithDetails(map[string]interface{}{
						"policy": policy.Name,
						"limit":  decision.Limit,
						"count":  decision.Count,
					}))

				h.Set(HeaderRetryAfter, strconv.Itoa(policy.RetryAfter()))
				_ = utils.WriteRateLimited(w, policy.ErrorCode(), policy.Message, policy.RetryAfter())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func secondsUntil(t time.Time) int {
	d := time.Until(t)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
