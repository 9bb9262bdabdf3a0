package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSigningSecret is returned when JWT_SECRET is not set. The gateway
// cannot start without it.
var ErrMissingSigningSecret = errors.New("JWT_SECRET is required")

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      *DatabaseConfig // Optional: security events are only persisted when set.
	Auth          AuthConfig
	Cognito       CognitoConfig
	RateLimit     RateLimitConfig
	Hardening     HardeningConfig
	Realtime      RealtimeConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings for the security event store
type DatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds local token and verification settings
type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	TokenTTL        time.Duration
	ProviderTimeout time.Duration
}

// CognitoConfig holds AWS Cognito identity provider configuration
type CognitoConfig struct {
	Region     string
	UserPoolID string
	ClientID   string
	Domain     string // Hosted domain; enables the userInfo liveness check when set
}

// Enabled reports whether the remote identity provider is configured
func (c CognitoConfig) Enabled() bool {
	return c.UserPoolID != "" && c.ClientID != ""
}

// RateLimitConfig selects the counter store
type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// HardeningConfig holds request hardening settings
type HardeningConfig struct {
	MaxBodyBytes          int64
	MaxSensitiveBodyBytes int64
	CORSAllowedOrigins    []string
}

// RealtimeConfig holds persistent-connection settings
type RealtimeConfig struct {
	AllowAnonymous bool
	OriginPatterns []string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			Issuer:          getEnv("JWT_ISSUER", "crm-gateway"),
			TokenTTL:        24 * time.Hour,
			ProviderTimeout: getEnvAsDuration("AUTH_PROVIDER_TIMEOUT", 5*time.Second),
		},
		Cognito: CognitoConfig{
			Region:     getEnv("COGNITO_REGION", "us-east-1"),
			UserPoolID: getEnv("COGNITO_USER_POOL_ID", ""),
			ClientID:   getEnv("COGNITO_CLIENT_ID", ""),
			Domain:     getEnv("COGNITO_DOMAIN", ""),
		},
		RateLimit: RateLimitConfig{
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Hardening: HardeningConfig{
			MaxBodyBytes:          getEnvAsInt64("MAX_BODY_BYTES", 10<<20),
			MaxSensitiveBodyBytes: getEnvAsInt64("MAX_SENSITIVE_BODY_BYTES", 1<<20),
			CORSAllowedOrigins:    getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		Realtime: RealtimeConfig{
			AllowAnonymous: getEnvAsBool("REALTIME_ALLOW_ANONYMOUS", false),
			OriginPatterns: getEnvAsList("WS_ALLOWED_ORIGINS", nil),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return ErrMissingSigningSecret
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
	}
	if c.Auth.ProviderTimeout <= 0 {
		return fmt.Errorf("AUTH_PROVIDER_TIMEOUT must be positive")
	}

	// Cognito: pool and client go together
	if (c.Cognito.UserPoolID == "") != (c.Cognito.ClientID == "") {
		return fmt.Errorf("COGNITO_USER_POOL_ID and COGNITO_CLIENT_ID must be set together")
	}

	if c.Hardening.MaxBodyBytes <= 0 || c.Hardening.MaxSensitiveBodyBytes <= 0 {
		return fmt.Errorf("body size limits must be positive")
	}

	if c.IsProduction() {
		for _, origin := range c.Hardening.CORSAllowedOrigins {
			if origin == "*" {
				return fmt.Errorf("CORS wildcard origin is not allowed in production")
			}
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return c.ConnectionString
}

// LogString returns a safe string for logging (no password).
func (c *DatabaseConfig) LogString() string {
	u, err := url.Parse(c.ConnectionString)
	if err != nil {
		return "host=<from DATABASE_URL>"
	}
	port := u.Port()
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
}

// loadDatabaseConfig returns nil when DATABASE_URL is not set
func loadDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
