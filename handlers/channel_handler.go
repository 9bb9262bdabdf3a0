package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/crm-gateway/middleware"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
	"github.com/upb/crm-gateway/utils"
	"github.com/upb/crm-gateway/validation"
	"go.uber.org/zap"
)

// Publisher delivers messages to realtime channels. *realtime.Server implements it.
type Publisher interface {
	Publish(identity *models.Identity, channel string, payload interface{}) (int, error)
}

// PublishRequest is the body schema for HandlePublish
var PublishRequest = validation.Schema{
	"payload": validation.ObjectRule{Required: true},
}

// PublishResponse reports how many connections received a message
type PublishResponse struct {
	Channel   string `json:"channel"`
	Delivered int    `json:"delivered"`
}

// ChannelHandler publishes HTTP-submitted messages into realtime channels
type ChannelHandler struct {
	publisher Publisher
	events    middleware.EventRecorder
	logger    *zap.Logger
}

// NewChannelHandler creates a new ChannelHandler
func NewChannelHandler(publisher Publisher, events middleware.EventRecorder, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{
		publisher: publisher,
		events:    events,
		logger:    logger,
	}
}

// HandlePublish handles POST /api/v1/channels/{channel}/messages
func (h *ChannelHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	channel := chi.URLParam(r, "channel")
	if channel == "" {
		_ = utils.WriteValidationError(w, "", []string{"channel is required"})
		return
	}

	identity := middleware.GetIdentityFromContext(r.Context())
	payload := middleware.GetSanitizedBody(r.Context())["payload"]

	delivered, err := h.publisher.Publish(identity, channel, payload)
	if err != nil {
		if services.IsForbiddenError(err) && h.events != nil {
			evt := middleware.NewRequestEvent(r, models.SecurityEventChannelDenied).
				WithDetails(map[string]interface{}{"channel": channel, "userId": identityID(identity)})
			h.events.Record(r.Context(), evt)
		}
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteJSON(w, http.StatusAccepted, PublishResponse{
		Channel:   channel,
		Delivered: delivered,
	})
}

func identityID(identity *models.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}
