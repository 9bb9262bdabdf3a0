package auth

import (
	"context"
	"net/http"

	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
	"go.uber.org/zap"
)

var (
	// ErrChannelForbidden is returned when an identity may not join a channel.
	ErrChannelForbidden = services.NewDomainError(services.ErrorTypeForbidden, "channel join not permitted", nil)
	// ErrMessageForbidden is returned when an identity may not send a message type.
	ErrMessageForbidden = services.NewDomainError(services.ErrorTypeForbidden, "message type not permitted", nil)
)

// CredentialVerifier resolves credentials. *Verifier implements it.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) Result
}

// ConnectionAuthenticator is the single entry point a connection acceptor
// uses for handshake authentication and per-message authorization.
type ConnectionAuthenticator struct {
	verifier       CredentialVerifier
	allowAnonymous bool
	logger         *zap.Logger
}

// NewConnectionAuthenticator creates a ConnectionAuthenticator. With
// allowAnonymous, handshakes without a credential succeed with a nil identity.
func NewConnectionAuthenticator(verifier CredentialVerifier, allowAnonymous bool, logger *zap.Logger) *ConnectionAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionAuthenticator{
		verifier:       verifier,
		allowAnonymous: allowAnonymous,
		logger:         logger,
	}
}

// Authenticate resolves the identity behind a connection request. If the
// request context ends while verification runs, the result is discarded and
// the context error is returned.
func (c *ConnectionAuthenticator) Authenticate(r *http.Request) (*models.Identity, error) {
	ctx := r.Context()

	token, ok := ExtractToken(r)
	if !ok {
		if c.allowAnonymous {
			return nil, nil
		}
		return nil, services.ErrNoCredential
	}

	res := c.verifier.Verify(ctx, token)
	if err := ctx.Err(); err != nil {
		c.logger.Debug("connection closed during verification, discarding result",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil, err
	}

	if !res.Success {
		if res.Reason == ReasonNoToken {
			return nil, services.ErrNoCredential
		}
		return nil, services.ErrInvalidCredential
	}

	return res.Identity, nil
}

// AuthorizeJoin returns ErrChannelForbidden unless CanJoin allows the join.
func (c *ConnectionAuthenticator) AuthorizeJoin(identity *models.Identity, channel string) error {
	if CanJoin(identity, channel) {
		return nil
	}
	c.logger.Warn("channel join denied",
		zap.String("user_id", identityID(identity)),
		zap.String("channel", channel))
	return ErrChannelForbidden
}

// AuthorizeMessage returns ErrMessageForbidden unless CanSend allows the type.
func (c *ConnectionAuthenticator) AuthorizeMessage(identity *models.Identity, messageType string) error {
	if CanSend(identity, messageType) {
		return nil
	}
	c.logger.Warn("message type denied",
		zap.String("user_id", identityID(identity)),
		zap.String("message_type", messageType),
		zap.String("tier", string(TierOf(messageType))))
	return ErrMessageForbidden
}

func identityID(identity *models.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}
