package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/upb/crm-gateway/models"
)

// eventSink collects recorded security events
type eventSink struct {
	mu     sync.Mutex
	events []*models.SecurityEvent
}

func (s *eventSink) Record(_ context.Context, event *models.SecurityEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *eventSink) types() []models.SecurityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SecurityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func failHandler(t interface{ Fatal(args ...interface{}) }) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
}
