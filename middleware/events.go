package middleware

import (
	"context"
	"net/http"

	"github.com/upb/crm-gateway/models"
)

// EventRecorder receives security events. Implementations must not block.
type EventRecorder interface {
	Record(ctx context.Context, event *models.SecurityEvent)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, *models.SecurityEvent) {}

func recorderOrNop(events EventRecorder) EventRecorder {
	if events == nil {
		return nopRecorder{}
	}
	return events
}

// NewRequestEvent builds a security event carrying r's address, agent,
// method, path and request ID.
func NewRequestEvent(r *http.Request, eventType models.SecurityEventType) *models.SecurityEvent {
	ip := GetClientIPFromContext(r.Context())
	if ip == "" {
		ip = ResolveClientIP(r)
	}
	return models.NewSecurityEvent(eventType).WithRequest(
		ip,
		r.UserAgent(),
		r.Method,
		r.URL.Path,
		GetRequestIDFromContext(r.Context()),
	)
}
