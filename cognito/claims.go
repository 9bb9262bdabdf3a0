package cognito

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// validRoles are the accepted values of custom:userRole
var validRoles = map[string]bool{
	"admin": true,
	"agent": true,
	"user":  true,
}

// ExtractClaims extracts and parses claims from a JWT token without validation.
// Only use it on tokens that were already verified.
func ExtractClaims(tokenString string) (*ParsedClaims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	return parseClaims(claims)
}

// parseClaims converts Claims to ParsedClaims
func parseClaims(claims *Claims) (*ParsedClaims, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	// Cognito subjects are UUIDs
	sub, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid sub UUID: %w", err)
	}

	if err := ValidateCustomClaims(claims); err != nil {
		return nil, err
	}

	username := claims.CognitoUsername
	if username == "" {
		username = claims.Username
	}

	parsed := &ParsedClaims{
		Sub:           sub.String(),
		Email:         claims.Email,
		TenantID:      claims.TenantID,
		Role:          claims.Role,
		EmailVerified: claims.EmailVerified,
		Username:      username,
		TokenUse:      claims.TokenUse,
	}

	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}

	return parsed, nil
}

// ValidateCustomClaims checks the format of the optional custom attributes
func ValidateCustomClaims(claims *Claims) error {
	if claims.TenantID != "" {
		if _, err := uuid.Parse(claims.TenantID); err != nil {
			return fmt.Errorf("invalid custom:tenantId format: %w", err)
		}
	}

	if claims.Role != "" && !validRoles[claims.Role] {
		return fmt.Errorf("invalid custom:userRole value: %s", claims.Role)
	}

	return nil
}
