package handlers

import (
	"net/http"
	"time"

	"github.com/upb/crm-gateway/middleware"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
	"github.com/upb/crm-gateway/utils"
	"github.com/upb/crm-gateway/validation"
	"go.uber.org/zap"
)

// TokenIssuer signs gateway tokens. *auth.LocalTokens implements it.
type TokenIssuer interface {
	GenerateToken(identity *models.Identity) (string, error)
	ExpiresIn() time.Duration
}

// TokenRequest is the body schema for HandleIssue
var TokenRequest = validation.Schema{
	"metadata": validation.ObjectRule{},
}

// TokenResponse is the body of a successful token exchange
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
	ExpiresIn int64  `json:"expiresIn"`
}

// TokenHandler exchanges a verified credential for a gateway token
type TokenHandler struct {
	issuer TokenIssuer
	logger *zap.Logger
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(issuer TokenIssuer, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		issuer: issuer,
		logger: logger,
	}
}

// HandleIssue handles POST /api/v1/auth/token
// Requires an identity in context; optional body metadata is merged into the
// issued token's metadata.
func (h *TokenHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		HandleServiceError(w, services.ErrNoCredential, h.logger)
		return
	}

	subject := &models.Identity{
		ID:       identity.ID,
		Email:    identity.Email,
		Role:     identity.Role,
		Metadata: mergeMetadata(identity.Metadata, middleware.GetSanitizedBody(r.Context())),
	}

	token, err := h.issuer.GenerateToken(subject)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to issue token", err), h.logger)
		return
	}

	h.logger.Debug("issued gateway token",
		zap.String("user_id", subject.ID),
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())))

	_ = utils.WriteJSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(h.issuer.ExpiresIn() / time.Second),
	})
}

// mergeMetadata overlays the request's metadata object on the identity's.
// Keys already on the identity win.
func mergeMetadata(existing map[string]interface{}, body map[string]interface{}) map[string]interface{} {
	extra, _ := body["metadata"].(map[string]interface{})
	if len(existing) == 0 && len(extra) == 0 {
		return nil
	}

	merged := make(map[string]interface{}, len(existing)+len(extra))
	for k, v := range extra {
		merged[k] = v
	}
	for k, v := range existing {
		merged[k] = v
	}
	return merged
}
