package app

import (
	"context"

	"github.com/upb/crm-gateway/auth"
	"github.com/upb/crm-gateway/cognito"
	"github.com/upb/crm-gateway/services"
)

// userResolver is satisfied by *cognito.Resolver
type userResolver interface {
	Resolve(ctx context.Context, token string) (*cognito.User, error)
}

// cognitoProvider adapts the Cognito resolver to auth.IdentityProvider
type cognitoProvider struct {
	resolver userResolver
}

func newCognitoProvider(resolver userResolver) *cognitoProvider {
	return &cognitoProvider{resolver: resolver}
}

// ResolveUser implements auth.IdentityProvider
func (p *cognitoProvider) ResolveUser(ctx context.Context, token string) (*auth.ProviderUser, error) {
	user, err := p.resolver.Resolve(ctx, token)
	if err != nil {
		if cognito.IsTransportError(err) {
			return nil, services.WrapError(services.ErrorTypeVerificationTransport, "cognito unreachable", err)
		}
		return nil, services.WrapError(services.ErrorTypeInvalidCredential, "cognito rejected credential", err)
	}

	attrs := make(map[string]interface{}, len(user.Attributes)+1)
	for k, v := range user.Attributes {
		attrs[k] = v
	}
	if user.Role != "" {
		attrs["userRole"] = user.Role
	}

	return &auth.ProviderUser{
		ID:         user.Sub,
		Email:      user.Email,
		Attributes: attrs,
	}, nil
}
