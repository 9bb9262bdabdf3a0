package middleware

import (
	"context"
	"net/http"

	"github.com/upb/crm-gateway/auth"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
	"github.com/upb/crm-gateway/utils"
	"go.uber.org/zap"
)

// Authenticator resolves a credential to an identity. auth.Verifier
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authenticator Authenticator
	events        EventRecorder
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator Authenticator, events EventRecorder, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		authenticator: authenticator,
		events:        recorderOrNop(events),
		logger:        logger,
	}
}

// RequireAuth is a middleware that requires a verified credential
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token, _ := auth.ExtractToken(r)
		identity, err := m.authenticator.Authenticate(ctx, token)
		if err != nil {
			m.logger.Warn("authentication failed",
				zap.String("request_id", requestID),
				zap.String("ip", GetClientIPFromContext(ctx)),
				zap.String("path", r.URL.Path),
				zap.String("token_prefix", auth.TokenPrefix(token)),
				zap.Error(err))

			m.events.Record(ctx, NewRequestEvent(r, models.SecurityEventAuthFailed).
				WithDetails(map[string]interface{}{"reason": string(services.GetErrorType(err))}))

			if services.IsNoCredentialError(err) {
				_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
				return
			}
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("identity", identity.ID))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

// OptionalAuth attaches an identity when a valid credential is presented and
// otherwise lets the request through anonymously.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.ExtractToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.authenticator.Authenticate(r.Context(), token)
		if err != nil {
			m.logger.Debug("optional credential rejected",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("token_prefix", auth.TokenPrefix(token)),
				zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// RequireElevated is a middleware that requires an admin identity.
// This should be called after RequireAuth
func (m *AuthMiddleware) RequireElevated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		identity := GetIdentityFromContext(ctx)
		if identity == nil {
			m.logger.Error("identity not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		if !identity.IsElevated() {
			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("identity", identity.ID),
				zap.String("role", identity.Role))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}
