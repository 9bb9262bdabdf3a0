package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/crm-gateway/auth"
	"github.com/upb/crm-gateway/middleware"
	"github.com/upb/crm-gateway/models"
	"go.uber.org/zap"
)

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(identity *models.Identity, channel string, payload interface{}) (int, error) {
	args := m.Called(identity, channel, payload)
	return args.Int(0), args.Error(1)
}

type eventSink struct {
	mu     sync.Mutex
	events []*models.SecurityEvent
}

func (s *eventSink) Record(_ context.Context, event *models.SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func publishRequest(identity *models.Identity, channel string, body map[string]interface{}) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/channels/"+channel+"/messages", nil)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("channel", channel)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if identity != nil {
		ctx = middleware.WithIdentity(ctx, identity)
	}
	ctx = middleware.WithSanitizedBody(ctx, body)
	return req.WithContext(ctx)
}

func TestChannelHandler_HandlePublish(t *testing.T) {
	logger := zap.NewNop()

	t.Run("publishes the sanitized payload", func(t *testing.T) {
		publisher := new(MockPublisher)
		identity := &models.Identity{ID: "u-1"}
		payload := map[string]interface{}{"text": "hello"}
		publisher.On("Publish", identity, "user:u-1", payload).Return(2, nil)

		handler := NewChannelHandler(publisher, nil, logger)
		w := httptest.NewRecorder()

		handler.HandlePublish(w, publishRequest(identity, "user:u-1", map[string]interface{}{"payload": payload}))

		assert.Equal(t, http.StatusAccepted, w.Code)
		var response PublishResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, PublishResponse{Channel: "user:u-1", Delivered: 2}, response)
		publisher.AssertExpectations(t)
	})

	t.Run("forbidden channel records an event", func(t *testing.T) {
		publisher := new(MockPublisher)
		publisher.On("Publish", mock.Anything, "user:u-2", mock.Anything).Return(0, auth.ErrChannelForbidden)
		events := &eventSink{}

		handler := NewChannelHandler(publisher, events, logger)
		w := httptest.NewRecorder()

		handler.HandlePublish(w, publishRequest(&models.Identity{ID: "u-1"}, "user:u-2", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
		require.Len(t, events.events, 1)
		assert.Equal(t, models.SecurityEventChannelDenied, events.events[0].Type)
		assert.JSONEq(t, `{"channel":"user:u-2","userId":"u-1"}`, string(events.events[0].Details))
	})

	t.Run("missing channel", func(t *testing.T) {
		publisher := new(MockPublisher)
		handler := NewChannelHandler(publisher, nil, logger)
		w := httptest.NewRecorder()

		handler.HandlePublish(w, publishRequest(&models.Identity{ID: "u-1"}, "", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
	})
}
