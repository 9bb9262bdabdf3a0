package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/crm-gateway/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// IdentityKey is the context key for the verified caller
	IdentityKey contextKey = "identity"

	// ClientIPKey is the context key for the normalized client address
	ClientIPKey contextKey = "client_ip"

	// SanitizedBodyKey is the context key for the guarded request body
	SanitizedBodyKey contextKey = "sanitized_body"

	// SanitizedQueryKey is the context key for the guarded query values
	SanitizedQueryKey contextKey = "sanitized_query"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request an ID, reusing a well-formed inbound one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetIdentityFromContext retrieves the verified identity from context
func GetIdentityFromContext(ctx context.Context) *models.Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*models.Identity); ok {
			return identity
		}
	}
	return nil
}

// WithIdentity adds a verified identity to the context
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetClientIPFromContext retrieves the normalized client address from context
func GetClientIPFromContext(ctx context.Context) string {
	if val := ctx.Value(ClientIPKey); val != nil {
		if ip, ok := val.(string); ok {
			return ip
		}
	}
	return ""
}

// WithClientIP adds the normalized client address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// GetSanitizedBody retrieves the validated, sanitized request body
func GetSanitizedBody(ctx context.Context) map[string]interface{} {
	if val := ctx.Value(SanitizedBodyKey); val != nil {
		if body, ok := val.(map[string]interface{}); ok {
			return body
		}
	}
	return nil
}

// WithSanitizedBody adds the sanitized request body to the context
func WithSanitizedBody(ctx context.Context, body map[string]interface{}) context.Context {
	return context.WithValue(ctx, SanitizedBodyKey, body)
}

// GetSanitizedQuery retrieves the validated, sanitized query values
func GetSanitizedQuery(ctx context.Context) map[string]interface{} {
	if val := ctx.Value(SanitizedQueryKey); val != nil {
		if query, ok := val.(map[string]interface{}); ok {
			return query
		}
	}
	return nil
}

// WithSanitizedQuery adds the sanitized query values to the context
func WithSanitizedQuery(ctx context.Context, query map[string]interface{}) context.Context {
	return context.WithValue(ctx, SanitizedQueryKey, query)
}
