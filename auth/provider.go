package auth

import (
	"context"
	"errors"
	"time"

	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
	"go.uber.org/zap"
)

// DefaultProviderTimeout bounds a single identity provider lookup.
const DefaultProviderTimeout = 5 * time.Second

// ProviderUser is a live user record returned by an identity provider.
type ProviderUser struct {
	ID         string
	Email      string
	Attributes map[string]interface{}
}

// IdentityProvider resolves a provider-issued credential to a user record.
// Transport failures should be returned as services.ErrVerificationTransport.
type IdentityProvider interface {
	ResolveUser(ctx context.Context, token string) (*ProviderUser, error)
}

// ProviderStrategy asks a remote identity provider about a credential.
// Any failure, including a timeout, hands the credential to the next strategy.
type ProviderStrategy struct {
	provider IdentityProvider
	timeout  time.Duration
	logger   *zap.Logger
}

// NewProviderStrategy creates a ProviderStrategy. A non-positive timeout
// selects DefaultProviderTimeout.
func NewProviderStrategy(provider IdentityProvider, timeout time.Duration, logger *zap.Logger) *ProviderStrategy {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderStrategy{
		provider: provider,
		timeout:  timeout,
		logger:   logger,
	}
}

// Name implements Strategy.
func (s *ProviderStrategy) Name() string {
	return "provider"
}

type resolved struct {
	user *ProviderUser
	err  error
}

// Verify implements Strategy. The provider call runs under its own timeout;
// a provider that ignores its context is abandoned when the timeout fires.
func (s *ProviderStrategy) Verify(ctx context.Context, token string) StrategyResult {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan resolved, 1)
	go func() {
		user, err := s.provider.ResolveUser(ctx, token)
		done <- resolved{user: user, err: err}
	}()

	var res resolved
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = services.WrapError(services.ErrorTypeVerificationTransport, "identity provider timed out", ctx.Err())
	}

	if res.err != nil {
		if services.IsVerificationTransportError(res.err) || errors.Is(res.err, context.DeadlineExceeded) {
			s.logger.Warn("identity provider unavailable, falling back",
				zap.Duration("timeout", s.timeout),
				zap.Error(res.err))
		}
		return continueWith(res.err)
	}
	if res.user == nil || res.user.ID == "" {
		return continueWith(services.ErrInvalidCredential)
	}

	metadata := make(map[string]interface{}, len(res.user.Attributes))
	for k, v := range res.user.Attributes {
		metadata[k] = v
	}
	return success(&models.Identity{
		ID:       res.user.ID,
		Email:    res.user.Email,
		Metadata: metadata,
	})
}
