package routes

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/crm-gateway/app"
	"github.com/upb/crm-gateway/handlers"
	"github.com/upb/crm-gateway/middleware"
	"github.com/upb/crm-gateway/utils"
)

// SetupRoutes configures all application routes and middleware.
// Order: security headers, request id, client address, anomaly scan, size
// ceiling, rate limit, then per-route authentication and request guard.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	cfg := deps.Config
	events := deps.SecurityEvents

	// Core middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientIP)
	r.Use(deps.Hardening.AnomalyScan)
	r.Use(deps.Hardening.LimitBodySize(cfg.Hardening.MaxBodyBytes))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Hardening.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	var db *sql.DB
	if deps.DB != nil {
		db = deps.DB.DB
	}
	health := handlers.NewHealthHandler(db, deps.Redis, deps.Logger)
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	standard := middleware.RateLimit(deps.Limiters.Standard, events, deps.Logger)

	// Realtime connections authenticate during the handshake
	r.With(standard).Get("/ws", deps.Realtime.ServeHTTP)

	tokens := handlers.NewTokenHandler(deps.LocalTokens, deps.Logger)
	channels := handlers.NewChannelHandler(deps.Realtime, events, deps.Logger)
	securityEvents := handlers.NewSecurityEventsHandler(events, deps.Logger)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(standard)

		// Token exchange
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiters.Auth, events, deps.Logger))
			r.Use(deps.Hardening.LimitBodySize(cfg.Hardening.MaxSensitiveBodyBytes))
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.With(deps.Guard.ValidateBody(handlers.TokenRequest)).Post("/token", tokens.HandleIssue)
		})

		// Channel publishing
		r.Route("/channels", func(r chi.Router) {
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.With(deps.Guard.ValidateBody(handlers.PublishRequest)).Post("/{channel}/messages", channels.HandlePublish)
		})

		// Security events (require admin role)
		r.Route("/security", func(r chi.Router) {
			r.Use(middleware.RateLimit(deps.Limiters.Strict, events, deps.Logger))
			r.Use(deps.AuthMiddleware.RequireAuth)
			r.Use(deps.AuthMiddleware.RequireElevated)
			r.With(deps.Guard.ValidateQuery(handlers.SecurityEventsQuery)).Get("/events", securityEvents.HandleList)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
