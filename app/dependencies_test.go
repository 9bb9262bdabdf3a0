package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/crm-gateway/cognito"
	"github.com/upb/crm-gateway/config"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/services"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: 5 * time.Second,
		},
		Auth: config.AuthConfig{
			JWTSecret:       "test-secret",
			Issuer:          "crm-gateway",
			TokenTTL:        24 * time.Hour,
			ProviderTimeout: 5 * time.Second,
		},
		Hardening: config.HardeningConfig{
			MaxBodyBytes:          10 << 20,
			MaxSensitiveBodyBytes: 1 << 20,
		},
		Observability: config.ObservabilityConfig{LogLevel: "debug", LogFormat: "console"},
	}
}

func TestNewDependencies(t *testing.T) {
	t.Run("local only without stores", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		assert.Nil(t, deps.DB)
		assert.Nil(t, deps.RepoFactory)
		assert.Nil(t, deps.Redis)
		assert.NotNil(t, deps.LocalTokens)
		assert.NotNil(t, deps.Verifier)
		assert.NotNil(t, deps.ConnectionAuth)
		assert.NotNil(t, deps.AuthMiddleware)
		assert.NotNil(t, deps.Hardening)
		assert.NotNil(t, deps.Guard)
		assert.NotNil(t, deps.Realtime)
		assert.NotNil(t, deps.Limiters.Standard)
		assert.NotNil(t, deps.Limiters.Strict)
		assert.NotNil(t, deps.Limiters.Auth)

		require.NotNil(t, deps.SecurityEvents)
		assert.False(t, deps.SecurityEvents.Persistent())
		assert.True(t, deps.SecurityEvents.GetStats().Started)
	})

	t.Run("issued tokens verify", func(t *testing.T) {
		ctx := context.Background()
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		token, err := deps.LocalTokens.GenerateToken(&models.Identity{ID: "user-1", Email: "a@example.com", Role: "user"})
		require.NoError(t, err)

		identity, err := deps.Verifier.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "user-1", identity.ID)
	})

	t.Run("empty secret", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Auth.JWTSecret = ""

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
		assert.Nil(t, deps)
		assert.Contains(t, err.Error(), "failed to initialize auth")
	})

	t.Run("redis backed limiters", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := testConfig(t)
		cfg.RateLimit.RedisAddr = mr.Addr()

		ctx := context.Background()
		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		require.NotNil(t, deps.Redis)
		decision := deps.Limiters.Strict.Allow(ctx, "203.0.113.7")
		assert.True(t, decision.Allowed)
		assert.NotEmpty(t, mr.Keys())
	})

	t.Run("cognito enabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Cognito = config.CognitoConfig{Region: "us-east-1", UserPoolID: "us-east-1_test", ClientID: "client"}

		ctx := context.Background()
		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		defer deps.Close(ctx)

		// local tokens still verify after the provider declines them
		token, err := deps.LocalTokens.GenerateToken(&models.Identity{ID: "user-2"})
		require.NoError(t, err)
		identity, err := deps.Verifier.Authenticate(ctx, token)
		require.NoError(t, err)
		assert.Equal(t, "user-2", identity.ID)
	})
}

func TestDependenciesClose(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RateLimit.RedisAddr = mr.Addr()

	deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, deps.Close(shutdownCtx))

	assert.Error(t, deps.Redis.Ping(ctx).Err())
}

type stubResolver struct {
	user *cognito.User
	err  error
}

func (s stubResolver) Resolve(context.Context, string) (*cognito.User, error) {
	return s.user, s.err
}

func TestCognitoProvider(t *testing.T) {
	t.Run("maps user", func(t *testing.T) {
		p := newCognitoProvider(stubResolver{user: &cognito.User{
			Sub:        "sub-1",
			Email:      "a@example.com",
			Role:       "admin",
			Attributes: map[string]interface{}{"tenantId": "t-1"},
		}})

		user, err := p.ResolveUser(context.Background(), "token")
		require.NoError(t, err)
		assert.Equal(t, "sub-1", user.ID)
		assert.Equal(t, "a@example.com", user.Email)
		assert.Equal(t, "t-1", user.Attributes["tenantId"])
		assert.Equal(t, "admin", user.Attributes["userRole"])
	})

	t.Run("transport failure", func(t *testing.T) {
		p := newCognitoProvider(stubResolver{err: fmt.Errorf("%w: timeout", cognito.ErrJWKSFetchFailed)})

		_, err := p.ResolveUser(context.Background(), "token")
		require.Error(t, err)
		assert.True(t, services.IsVerificationTransportError(err))
	})

	t.Run("rejected credential", func(t *testing.T) {
		p := newCognitoProvider(stubResolver{err: errors.New("token expired")})

		_, err := p.ResolveUser(context.Background(), "token")
		require.Error(t, err)
		assert.True(t, services.IsInvalidCredentialError(err))
		assert.False(t, services.IsVerificationTransportError(err))
	})
}
