package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/upb/crm-gateway/middleware"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/repositories"
	"github.com/upb/crm-gateway/services"
	"github.com/upb/crm-gateway/services/security"
	"github.com/upb/crm-gateway/utils"
	"github.com/upb/crm-gateway/validation"
	"go.uber.org/zap"
)

// EventLister reads persisted security events. *security.Service implements it.
type EventLister interface {
	List(ctx context.Context, filter repositories.SecurityEventFilter) ([]*models.SecurityEvent, error)
}

// SecurityEventsQuery is the query schema for HandleList
var SecurityEventsQuery = validation.Schema{
	"type": validation.EnumRule{Values: []string{
		string(models.SecurityEventRateLimited),
		string(models.SecurityEventPayloadTooLarge),
		string(models.SecurityEventHeaderAnomaly),
		string(models.SecurityEventAuthFailed),
		string(models.SecurityEventChannelDenied),
		string(models.SecurityEventMessageDenied),
		string(models.SecurityEventUnexpectedFields),
	}},
	"ip":    validation.StringRule{MaxLength: 45},
	"since": validation.DateRule{},
	"limit": validation.NumberRule{Integer: true, Min: validation.Bound(1), Max: validation.Bound(100)},
}

// SecurityEventsHandler serves the security event log to administrators
type SecurityEventsHandler struct {
	lister EventLister
	logger *zap.Logger
}

// NewSecurityEventsHandler creates a new SecurityEventsHandler
func NewSecurityEventsHandler(lister EventLister, logger *zap.Logger) *SecurityEventsHandler {
	return &SecurityEventsHandler{
		lister: lister,
		logger: logger,
	}
}

// HandleList handles GET /api/v1/security/events
// Query: type, ip, since (RFC 3339), limit (1-100)
func (h *SecurityEventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(middleware.GetSanitizedQuery(r.Context()))

	events, err := h.lister.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, security.ErrNoStore) {
			_ = utils.WriteError(w, http.StatusServiceUnavailable, "Security event store not configured", nil)
			return
		}
		HandleServiceError(w, services.WrapInternal("failed to list security events", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, events)
}

func filterFromQuery(query map[string]interface{}) repositories.SecurityEventFilter {
	var filter repositories.SecurityEventFilter
	if v, ok := query["type"].(string); ok {
		filter.Type = models.SecurityEventType(v)
	}
	if v, ok := query["ip"].(string); ok {
		filter.IP = v
	}
	if v, ok := query["since"].(string); ok {
		if since, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = since
		}
	}
	if v, ok := query["limit"].(int64); ok {
		filter.Limit = int(v)
	}
	return filter
}
