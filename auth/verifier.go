package auth

import (
	"context"
	"strings"

	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
	"go.uber.org/zap"
)

// Failure reasons reported in Result.
const (
	ReasonNoToken      = "no_token"
	ReasonInvalidToken = "invalid_token"
)

// Result is the outcome of Verifier.Verify.
type Result struct {
	Success  bool
	Identity *models.Identity
	Reason   string
	// Strategy names the strategy that accepted the credential.
	Strategy string
}

// Verifier resolves credentials by trying its strategies in order.
type Verifier struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewVerifier creates a Verifier over strategies, tried in the given order.
func NewVerifier(logger *zap.Logger, strategies ...Strategy) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		strategies: strategies,
		logger:     logger,
	}
}

// Verify resolves token to an identity. An empty token fails with
// ReasonNoToken; a token no strategy accepts fails with ReasonInvalidToken.
func (v *Verifier) Verify(ctx context.Context, token string) Result {
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{Reason: ReasonNoToken}
	}

	for _, strategy := range v.strategies {
		res := strategy.Verify(ctx, token)

		switch res.Outcome {
		case OutcomeSuccess:
			if res.Identity.IsAuthenticated() {
				return Result{Success: true, Identity: res.Identity, Strategy: strategy.Name()}
			}
			v.logger.Warn("strategy returned an empty identity",
				zap.String("strategy", strategy.Name()),
				zap.String("token_prefix", TokenPrefix(token)))
		case OutcomeFatal:
			v.logger.Debug("credential rejected",
				zap.String("strategy", strategy.Name()),
				zap.String("token_prefix", TokenPrefix(token)),
				zap.Error(res.Err))
			return Result{Reason: ReasonInvalidToken}
		default:
			if res.Err != nil {
				v.logger.Debug("strategy did not accept credential",
					zap.String("strategy", strategy.Name()),
					zap.String("token_prefix", TokenPrefix(token)),
					zap.Error(res.Err))
			}
		}
	}

	return Result{Reason: ReasonInvalidToken}
}

// Authenticate is Verify in error-returning form. It returns
// services.ErrNoCredential or services.ErrInvalidCredential on failure.
func (v *Verifier) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	res := v.Verify(ctx, token)
	if res.Success {
		return res.Identity, nil
	}
	if res.Reason == ReasonNoToken {
		return nil, services.ErrNoCredential
	}
	return nil, services.ErrInvalidCredential
}
