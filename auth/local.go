package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
)

// TokenTTL is the fixed lifetime of locally issued tokens.
const TokenTTL = 24 * time.Hour

var (
	// ErrMissingIdentifier is returned for a correctly signed token that
	// carries none of userId, sub or id.
	ErrMissingIdentifier = errors.New("token has no user identifier")
	// ErrTokenInvalid wraps signature, expiry and format failures.
	ErrTokenInvalid = errors.New("invalid local token")
)

// LocalClaims is the payload of a locally issued token. userId, sub and id
// are all accepted as the user identifier, in that order.
type LocalClaims struct {
	jwt.RegisteredClaims
	UserID   string                 `json:"userId,omitempty"`
	LegacyID string                 `json:"id,omitempty"`
	Email    string                 `json:"email,omitempty"`
	Role     string                 `json:"role,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (c *LocalClaims) identifier() string {
	for _, id := range []string{c.UserID, c.Subject, c.LegacyID} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}

// LocalTokens issues and verifies HS256 tokens with the server-held secret.
type LocalTokens struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// LocalOption configures LocalTokens.
type LocalOption func(*LocalTokens)

// WithIssuer sets the iss claim on issued tokens.
func WithIssuer(issuer string) LocalOption {
	return func(l *LocalTokens) {
		l.issuer = issuer
	}
}

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) LocalOption {
	return func(l *LocalTokens) {
		l.now = now
	}
}

// NewLocalTokens creates LocalTokens. An empty secret is a configuration
// error and the gateway must not start.
func NewLocalTokens(secret string, opts ...LocalOption) (*LocalTokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, services.WrapConfiguration("local token signing secret is not set", errors.New("JWT_SECRET is empty"))
	}

	l := &LocalTokens{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// ExpiresIn returns the lifetime of issued tokens.
func (l *LocalTokens) ExpiresIn() time.Duration {
	return TokenTTL
}

// GenerateToken signs {userId, email, metadata, role} with a 24h expiry.
func (l *LocalTokens) GenerateToken(identity *models.Identity) (string, error) {
	if !identity.IsAuthenticated() {
		return "", fmt.Errorf("generate token: %w", ErrMissingIdentifier)
	}

	now := l.now()
	claims := LocalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    l.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
		UserID:   identity.ID,
		Email:    identity.Email,
		Role:     identity.Role,
		Metadata: identity.Metadata,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of token and maps its claims to an
// identity.
func (l *LocalTokens) Verify(token string) (*models.Identity, error) {
	claims := &LocalClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) {
			return l.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	id := claims.identifier()
	if id == "" {
		return nil, ErrMissingIdentifier
	}

	metadata := claims.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &models.Identity{
		ID:       id,
		Email:    claims.Email,
		Role:     claims.Role,
		Metadata: metadata,
	}, nil
}

// LocalStrategy verifies self-issued tokens.
type LocalStrategy struct {
	tokens *LocalTokens
}

// NewLocalStrategy creates a LocalStrategy.
func NewLocalStrategy(tokens *LocalTokens) *LocalStrategy {
	return &LocalStrategy{tokens: tokens}
}

// Name implements Strategy.
func (s *LocalStrategy) Name() string {
	return "local"
}

// Verify implements Strategy. A validly signed token without an identifier
// is rejected outright.
func (s *LocalStrategy) Verify(_ context.Context, token string) StrategyResult {
	identity, err := s.tokens.Verify(token)
	switch {
	case err == nil:
		return success(identity)
	case errors.Is(err, ErrMissingIdentifier):
		return fatal(err)
	default:
		return continueWith(err)
	}
}
