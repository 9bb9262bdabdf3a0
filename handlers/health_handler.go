package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/upb/crm-gateway/utils"
	"go.uber.org/zap"
)

const (
	checkHealthy       = "healthy"
	checkUnhealthy     = "unhealthy"
	checkNotConfigured = "not_configured"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db     *sql.DB
	redis  redis.UniversalClient
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and redisClient may be nil
// when the gateway runs without them.
func NewHealthHandler(db *sql.DB, redisClient redis.UniversalClient, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		redis:  redisClient,
		logger: logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: returns 200 while the process serves requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    checkHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Checks every configured backing store
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": h.check(ctx, "database", h.db != nil, h.checkDatabase),
		"redis":    h.check(ctx, "redis", h.redis != nil, h.checkRedis),
	}

	status := checkHealthy
	httpStatus := http.StatusOK
	for _, result := range checks {
		if result == checkUnhealthy {
			status = checkUnhealthy
			httpStatus = http.StatusServiceUnavailable
		}
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

func (h *HealthHandler) check(ctx context.Context, name string, configured bool, fn func(context.Context) error) string {
	if !configured {
		return checkNotConfigured
	}
	if err := fn(ctx); err != nil {
		h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		return checkUnhealthy
	}
	return checkHealthy
}

// checkDatabase checks database connectivity
func (h *HealthHandler) checkDatabase(ctx context.Context) error {
	if err := h.db.PingContext(ctx); err != nil {
		return err
	}

	var result int
	return h.db.QueryRowContext(ctx, "SELECT 1").Scan(&result)
}

// checkRedis checks the rate limit counter store
func (h *HealthHandler) checkRedis(ctx context.Context) error {
	return h.redis.Ping(ctx).Err()
}
