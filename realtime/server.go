package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/upb/crm-gateway/middleware"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
	"github.com/upb/crm-gateway/utils"
	"go.uber.org/zap"
)

// Error codes carried in outbound error envelopes
const (
	CodeInvalidMessage   = "INVALID_MESSAGE"
	CodeMessageForbidden = "MESSAGE_FORBIDDEN"
	CodeChannelForbidden = "CHANNEL_FORBIDDEN"
	CodeChannelRequired  = "CHANNEL_REQUIRED"
	CodeNotJoined        = "NOT_JOINED"
	CodeUnsupportedType  = "UNSUPPORTED_TYPE"
	CodeHandlerError     = "HANDLER_ERROR"
)

const (
	defaultReadLimit    = 64 << 10
	defaultWriteTimeout = 5 * time.Second
)

// Authenticator is the connection auth facade. *auth.ConnectionAuthenticator
// implements it.
type Authenticator interface {
	Authenticate(r *http.Request) (*models.Identity, error)
	AuthorizeJoin(identity *models.Identity, channel string) error
	AuthorizeMessage(identity *models.Identity, messageType string) error
}

// Server accepts websocket connections and routes their messages
type Server struct {
	hub            *Hub
	auth           Authenticator
	events         middleware.EventRecorder
	logger         *zap.Logger
	originPatterns []string
	sendBuffer     int
	readLimit      int64
	writeTimeout   time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
}

// Option configures a Server
type Option func(*Server)

// WithOriginPatterns sets the accepted Origin host patterns
func WithOriginPatterns(patterns []string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// WithEvents sets the security event recorder
func WithEvents(events middleware.EventRecorder) Option {
	return func(s *Server) { s.events = events }
}

// WithSendBuffer sets the per-client outbound queue length
func WithSendBuffer(n int) Option {
	return func(s *Server) { s.sendBuffer = n }
}

// WithReadLimit caps inbound message size in bytes
func WithReadLimit(n int64) Option {
	return func(s *Server) { s.readLimit = n }
}

// NewServer creates a Server with the built-in handlers for broadcast,
// system:update, metrics, agent:status and voice:progress registered.
func NewServer(hub *Hub, authenticator Authenticator, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		hub:          hub,
		auth:         authenticator,
		logger:       logger,
		sendBuffer:   defaultSendBuffer,
		readLimit:    defaultReadLimit,
		writeTimeout: defaultWriteTimeout,
		handlers:     map[string]Handler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = nopRecorder{}
	}

	s.Handle(models.MessageTypeBroadcast, BroadcastHandler(hub))
	s.Handle(models.MessageTypeSystemUpdate, BroadcastHandler(hub))
	s.Handle(models.MessageTypeMetricsGet, StatsHandler(hub))
	s.Handle(models.MessageTypeMetricsSubscribe, SubscribeHandler(hub, MetricsChannel))
	s.Handle(models.MessageTypeAgentStatus, RelayHandler(hub))
	s.Handle(models.MessageTypeVoiceProgress, RelayHandler(hub))
	return s
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, *models.SecurityEvent) {}

// Handle registers h for msgType, replacing any previous handler
func (s *Server) Handle(msgType string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[msgType] = h
}

func (s *Server) handler(msgType string) (Handler, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handlers[msgType]
	return h, ok
}

// Hub returns the server's hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// ServeHTTP authenticates the upgrade request and serves the connection
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := s.auth.Authenticate(r)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.Warn("websocket handshake rejected",
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", middleware.GetClientIPFromContext(r.Context())),
			zap.Error(err))
		s.events.Record(r.Context(), middleware.NewRequestEvent(r, models.SecurityEventAuthFailed).
			WithDetails(map[string]interface{}{"reason": string(services.GetErrorType(err)), "transport": "websocket"}))

		message := "Invalid or expired token"
		if services.IsNoCredentialError(err) {
			message = "Missing or invalid authorization"
		}
		_ = utils.WriteUnauthorized(w, message)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		s.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(s.readLimit)

	s.serve(r, conn, NewClient(identity, s.sendBuffer))
}

func (s *Server) serve(r *http.Request, conn *websocket.Conn, client *Client) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.hub.Register(client)
	s.logger.Debug("websocket connected",
		zap.String("client_id", client.ID),
		zap.String("user_id", identityID(client.Identity)))

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx, cancel, conn, client)
	}()

	s.readLoop(ctx, r, conn, client)

	s.hub.Unregister(client)
	cancel()
	<-writerDone
	_ = conn.Close(websocket.StatusNormalClosure, "closed")

	s.logger.Debug("websocket disconnected", zap.String("client_id", client.ID))
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-client.Outbound():
			if !ok {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, s.writeTimeout)
			err := wsjson.Write(writeCtx, conn, env)
			cancelWrite()
			if err != nil {
				s.logger.Debug("websocket write failed", zap.String("client_id", client.ID), zap.Error(err))
				cancel()
				return
			}
		}
	}
}

func (s *Server) readLoop(ctx context.Context, r *http.Request, conn *websocket.Conn, client *Client) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Debug("websocket read failed", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			s.replyError(client, CodeInvalidMessage, "Only text messages are accepted")
			continue
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			s.replyError(client, CodeInvalidMessage, "Message must be a JSON object with a type")
			continue
		}

		s.dispatch(ctx, r, client, env)
	}
}

// dispatch authorizes env's type, then routes it
func (s *Server) dispatch(ctx context.Context, r *http.Request, client *Client, env models.Envelope) {
	if err := s.auth.AuthorizeMessage(client.Identity, env.Type); err != nil {
		s.deny(r, client, models.SecurityEventMessageDenied, env)
		s.replyError(client, CodeMessageForbidden, "Message type not permitted")
		return
	}

	switch env.Type {
	case models.MessageTypeHeartbeat:
		client.Send(models.NewEnvelope(models.MessageTypeHeartbeat, "", map[string]interface{}{
			"timestamp": time.Now().UTC(),
		}))

	case models.MessageTypeJoin:
		if env.Channel == "" {
			s.replyError(client, CodeChannelRequired, "Channel is required")
			return
		}
		if err := s.auth.AuthorizeJoin(client.Identity, env.Channel); err != nil {
			s.deny(r, client, models.SecurityEventChannelDenied, env)
			s.replyError(client, CodeChannelForbidden, "Channel join not permitted")
			return
		}
		s.hub.Join(client, env.Channel)
		client.Send(models.NewEnvelope(models.MessageTypeJoin, env.Channel, map[string]bool{"joined": true}))

	case models.MessageTypeLeave:
		if env.Channel == "" {
			s.replyError(client, CodeChannelRequired, "Channel is required")
			return
		}
		s.hub.Leave(client, env.Channel)
		client.Send(models.NewEnvelope(models.MessageTypeLeave, env.Channel, map[string]bool{"left": true}))

	case models.MessageTypeMessage:
		if env.Channel == "" {
			s.replyError(client, CodeChannelRequired, "Channel is required")
			return
		}
		if !s.hub.IsMember(client, env.Channel) {
			s.replyError(client, CodeNotJoined, "Join the channel before publishing")
			return
		}
		s.hub.Publish(env.Channel, env)

	default:
		h, ok := s.handler(env.Type)
		if !ok {
			s.replyError(client, CodeUnsupportedType, "No handler for message type")
			return
		}
		if err := h.HandleMessage(ctx, client, env); err != nil {
			switch {
			case errors.Is(err, errChannelRequired):
				s.replyError(client, CodeChannelRequired, "Channel is required")
			case errors.Is(err, errNotJoined):
				s.replyError(client, CodeNotJoined, "Join the channel before publishing")
			default:
				s.logger.Error("message handler failed",
					zap.String("message_type", env.Type),
					zap.String("client_id", client.ID),
					zap.Error(err))
				s.replyError(client, CodeHandlerError, "Message could not be processed")
			}
		}
	}
}

// Publish delivers payload to channel on behalf of identity. The identity
// must be allowed to send messages and to join the channel.
func (s *Server) Publish(identity *models.Identity, channel string, payload interface{}) (int, error) {
	if err := s.auth.AuthorizeMessage(identity, models.MessageTypeMessage); err != nil {
		return 0, err
	}
	if err := s.auth.AuthorizeJoin(identity, channel); err != nil {
		return 0, err
	}
	return s.hub.Publish(channel, models.NewEnvelope(models.MessageTypeMessage, channel, payload)), nil
}

func (s *Server) deny(r *http.Request, client *Client, eventType models.SecurityEventType, env models.Envelope) {
	s.events.Record(r.Context(), middleware.NewRequestEvent(r, eventType).WithDetails(map[string]interface{}{
		"messageType": env.Type,
		"channel":     env.Channel,
		"userId":      identityID(client.Identity),
	}))
}

func (s *Server) replyError(client *Client, code, message string) {
	client.Send(models.NewEnvelope(models.MessageTypeError, "", models.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

func identityID(identity *models.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}
