package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/crm-gateway/auth"
	"github.com/upb/crm-gateway/cognito"
	"github.com/upb/crm-gateway/config"
	"github.com/upb/crm-gateway/middleware"
	"github.com/upb/crm-gateway/realtime"
	"github.com/upb/crm-gateway/repositories"
	"github.com/upb/crm-gateway/repositories/postgres"
	"github.com/upb/crm-gateway/services/ratelimit"
	"github.com/upb/crm-gateway/services/security"
	"github.com/upb/crm-gateway/validation"
	"go.uber.org/zap"
)

// Limiters holds one limiter per preset. Each has its own counters.
type Limiters struct {
	Standard *ratelimit.Limiter
	Strict   *ratelimit.Limiter
	Auth     *ratelimit.Limiter
}

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger
	DB     *postgres.DB // nil without DATABASE_URL
	Redis  redis.UniversalClient

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory
	TxManager   repositories.TransactionManager

	// Trust
	LocalTokens    *auth.LocalTokens
	Verifier       *auth.Verifier
	ConnectionAuth *auth.ConnectionAuthenticator

	// Request pipeline
	AuthMiddleware *middleware.AuthMiddleware
	Hardening      *middleware.Hardening
	Guard          *middleware.Guard
	Limiters       Limiters

	// Sinks and realtime
	SecurityEvents *security.Service
	Realtime       *realtime.Server
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if cfg.Database != nil {
		if err := deps.initDatabase(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set, security events will be logged only")
	}

	if err := deps.initSecurityEvents(); err != nil {
		deps.closeStores()
		return nil, fmt.Errorf("failed to initialize security events: %w", err)
	}

	deps.initRateLimiters(cfg)
	deps.initPipeline(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Bool("provider_enabled", cfg.Cognito.Enabled()),
		zap.Bool("events_persistent", deps.SecurityEvents.Persistent()),
		zap.Bool("shared_rate_limits", deps.Redis != nil))
	return deps, nil
}

// initAuth builds the verifier. The provider strategy runs first when
// Cognito is configured; local tokens are always accepted.
func (d *Dependencies) initAuth(cfg *config.Config) error {
	opts := []auth.LocalOption{}
	if cfg.Auth.Issuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.Auth.Issuer))
	}
	tokens, err := auth.NewLocalTokens(cfg.Auth.JWTSecret, opts...)
	if err != nil {
		return err
	}
	d.LocalTokens = tokens

	var strategies []auth.Strategy
	if cfg.Cognito.Enabled() {
		validator := cognito.NewCognitoValidator(cognito.Config{
			Region:      cfg.Cognito.Region,
			UserPoolID:  cfg.Cognito.UserPoolID,
			ClientID:    cfg.Cognito.ClientID,
			CacheTTL:    time.Hour,
			HTTPTimeout: cfg.Auth.ProviderTimeout,
		})

		var userInfo *cognito.UserInfoClient
		if cfg.Cognito.Domain != "" {
			userInfo = cognito.NewUserInfoClient(cfg.Cognito.Domain, cfg.Auth.ProviderTimeout)
		}

		provider := newCognitoProvider(cognito.NewResolver(validator, userInfo))
		strategies = append(strategies, auth.NewProviderStrategy(provider, cfg.Auth.ProviderTimeout, d.Logger))
		d.Logger.Info("cognito identity provider enabled",
			zap.String("region", cfg.Cognito.Region),
			zap.Bool("user_info", userInfo != nil))
	} else {
		d.Logger.Warn("cognito not configured, accepting local tokens only")
	}
	strategies = append(strategies, auth.NewLocalStrategy(tokens))

	d.Verifier = auth.NewVerifier(d.Logger, strategies...)
	d.ConnectionAuth = auth.NewConnectionAuthenticator(d.Verifier, cfg.Realtime.AllowAnonymous, d.Logger)
	return nil
}

// initDatabase connects to PostgreSQL and creates the security event table
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(*cfg.Database, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	if err := factory.GetDB().InitSchema(ctx); err != nil {
		_ = factory.Close()
		return err
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.TxManager = factory.GetTransactionManager()
	return nil
}

func (d *Dependencies) initSecurityEvents() error {
	var repo repositories.SecurityEventRepository
	if d.RepoFactory != nil {
		repo = d.RepoFactory.NewRepositories().SecurityEvents
	}

	d.SecurityEvents = security.NewService(repo, d.TxManager, d.Logger, security.DefaultConfig())
	return d.SecurityEvents.Start()
}

// initRateLimiters shares one Redis store across limiters when REDIS_ADDR is
// set. Keys are namespaced by policy name.
func (d *Dependencies) initRateLimiters(cfg *config.Config) {
	var store ratelimit.Store
	if cfg.RateLimit.RedisAddr != "" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		store = ratelimit.NewRedisStore(d.Redis, d.Logger)
		d.Logger.Info("rate limit counters shared through redis", zap.String("addr", cfg.RateLimit.RedisAddr))
	}

	d.Limiters = Limiters{
		Standard: ratelimit.New(ratelimit.Standard, store, d.Logger),
		Strict:   ratelimit.New(ratelimit.Strict, store, d.Logger),
		Auth:     ratelimit.New(ratelimit.Auth, store, d.Logger),
	}
}

func (d *Dependencies) initPipeline(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Verifier, d.SecurityEvents, d.Logger)
	d.Hardening = middleware.NewHardening(d.SecurityEvents, d.Logger)
	d.Guard = middleware.NewGuard(validation.NewValidator(d.Logger), d.SecurityEvents, d.Logger)
	d.Realtime = realtime.NewServer(realtime.NewHub(), d.ConnectionAuth, d.Logger,
		realtime.WithOriginPatterns(cfg.Realtime.OriginPatterns),
		realtime.WithEvents(d.SecurityEvents),
		realtime.WithReadLimit(cfg.Hardening.MaxSensitiveBodyBytes),
	)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.SecurityEvents != nil {
		timeout := 10 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.SecurityEvents.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain security events: %w", err))
		}
	}

	errs = append(errs, d.closeStores()...)

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}

func (d *Dependencies) closeStores() []error {
	var errs []error
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}
	return errs
}
