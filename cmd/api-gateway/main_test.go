package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/crm-gateway/app"
	"github.com/upb/crm-gateway/config"
	"github.com/upb/crm-gateway/routes"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	// Setup
	os.Setenv("ENVIRONMENT", "test")
	os.Setenv("LOG_LEVEL", "error")

	// Run tests
	code := m.Run()

	// Teardown
	os.Exit(code)
}

func TestInitLogger(t *testing.T) {
	t.Run("default json logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "info")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("development console logger", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "debug")
		os.Setenv("LOG_FORMAT", "console")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})

	t.Run("invalid log level", func(t *testing.T) {
		os.Setenv("LOG_LEVEL", "invalid")
		os.Setenv("LOG_FORMAT", "json")

		logger, err := initLogger()
		assert.Error(t, err)
		assert.Nil(t, logger)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("defaults when not set", func(t *testing.T) {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("LOG_FORMAT")

		logger, err := initLogger()
		require.NoError(t, err)
		require.NotNil(t, logger)
		defer logger.Sync()
	})
}

func TestRun_MissingSecret(t *testing.T) {
	os.Unsetenv("JWT_SECRET")

	err := run(context.Background(), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("SERVER_HOST", "127.0.0.1")
	os.Setenv("PORT", "0")
	defer func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("SERVER_HOST")
		os.Unsetenv("PORT")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, zaptest.NewLogger(t)) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestApplicationStartup(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	deps, err := app.NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(ctx)

	ts := httptest.NewServer(newServer(cfg, routes.SetupRoutes(deps)).Handler)
	defer ts.Close()

	t.Run("health check returns healthy", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Data["status"])
	})

	t.Run("readiness reports unconfigured stores", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				Checks map[string]string `json:"checks"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "not_configured", body.Data.Checks["database"])
		assert.Equal(t, "not_configured", body.Data.Checks["redis"])
	})
}

func TestAPIEndpoints_Unauthenticated(t *testing.T) {
	ctx := context.Background()
	deps, err := app.NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(ctx)

	ts := httptest.NewServer(routes.SetupRoutes(deps))
	defer ts.Close()

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"issue token", "POST", "/api/v1/auth/token", http.StatusUnauthorized},
		{"publish message", "POST", "/api/v1/channels/agent:1/messages", http.StatusUnauthorized},
		{"list security events", "GET", "/api/v1/security/events", http.StatusUnauthorized},
		{"websocket handshake", "GET", "/ws", http.StatusUnauthorized},
		{"not found", "GET", "/api/v1/nonexistent", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: %s %s", tc.method, tc.path)
		})
	}
}

func TestNewServer(t *testing.T) {
	cfg := testConfig(t)
	srv := newServer(cfg, http.NotFoundHandler())

	assert.Equal(t, "localhost:8080", srv.Addr)
	assert.Equal(t, 30*time.Second, srv.ReadTimeout)
	assert.Equal(t, 5*time.Second, srv.ReadHeaderTimeout)
}

// Test helpers

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
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
			CORSAllowedOrigins:    []string{"http://localhost:*"},
		},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}
