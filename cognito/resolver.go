package cognito

import (
	"context"
	"errors"
	"fmt"
)

// ErrSubjectMismatch is returned when userInfo describes a different user
// than the token subject.
var ErrSubjectMismatch = errors.New("userInfo subject does not match token")

// User is a verified Cognito user record.
type User struct {
	Sub        string
	Email      string
	Username   string
	TenantID   string
	Role       string
	Attributes map[string]interface{}
}

// Resolver turns a Cognito token into a live user record.
type Resolver struct {
	validator *CognitoValidator
	userInfo  *UserInfoClient
}

// NewResolver creates a Resolver. userInfo may be nil, in which case a valid
// signature and claim set is taken as proof of a live user.
func NewResolver(validator *CognitoValidator, userInfo *UserInfoClient) *Resolver {
	return &Resolver{
		validator: validator,
		userInfo:  userInfo,
	}
}

// Resolve validates token and, for access tokens with a userInfo client
// configured, confirms the user is still active.
func (r *Resolver) Resolve(ctx context.Context, token string) (*User, error) {
	claims, err := r.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user := &User{
		Sub:      claims.Sub,
		Email:    claims.Email,
		Username: claims.Username,
		TenantID: claims.TenantID,
		Role:     claims.Role,
		Attributes: map[string]interface{}{
			"emailVerified": claims.EmailVerified,
		},
	}
	if claims.Username != "" {
		user.Attributes["username"] = claims.Username
	}
	if claims.TenantID != "" {
		user.Attributes["tenantId"] = claims.TenantID
	}

	// userInfo only accepts access tokens
	if r.userInfo == nil || claims.TokenUse != "access" {
		return user, nil
	}

	attrs, err := r.userInfo.GetUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if sub, _ := attrs["sub"].(string); sub != "" && sub != claims.Sub {
		return nil, fmt.Errorf("%w: %s", ErrSubjectMismatch, sub)
	}
	if email, _ := attrs["email"].(string); email != "" && user.Email == "" {
		user.Email = email
	}
	for k, v := range attrs {
		if k == "sub" {
			continue
		}
		user.Attributes[k] = v
	}

	return user, nil
}

// IsTransportError reports whether err means Cognito could not be reached,
// as opposed to the credential being rejected.
func IsTransportError(err error) bool {
	return errors.Is(err, ErrJWKSFetchFailed) || errors.Is(err, ErrUserInfoUnavailable)
}
