package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/repositories"
	"go.uber.org/zap"
)

// DefaultListLimit caps listings that do not set a limit
const DefaultListLimit = 100

const securityEventColumns = `id, type, ip_address, user_agent, path, method, request_id, timestamp, details`

// SecurityEventRepository implements the repositories.SecurityEventRepository interface
type SecurityEventRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSecurityEventRepository creates a new security event repository
func NewSecurityEventRepository(db *DB, logger *zap.Logger) repositories.SecurityEventRepository {
	return &SecurityEventRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new security event
func (r *SecurityEventRepository) Insert(ctx context.Context, event *models.SecurityEvent) error {
	query := `
		INSERT INTO security_events (` + securityEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		event.ID,
		event.Type,
		event.IP,
		event.UserAgent,
		event.Path,
		event.Method,
		event.RequestID,
		event.Timestamp,
		nullableJSON(event.Details),
	)
	if err != nil {
		return fmt.Errorf("failed to insert security event: %w", err)
	}

	r.logger.Debug("security event inserted",
		zap.String("id", event.ID.String()),
		zap.String("type", string(event.Type)))
	return nil
}

// GetByID retrieves a security event by ID
func (r *SecurityEventRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error) {
	query := `SELECT ` + securityEventColumns + ` FROM security_events WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	event, err := scanSecurityEvent(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("security event %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get security event: %w", err)
	}

	return event, nil
}

// List retrieves security events matching filter, newest first
func (r *SecurityEventRepository) List(ctx context.Context, filter repositories.SecurityEventFilter) ([]*models.SecurityEvent, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.IP != "" {
		args = append(args, filter.IP)
		conditions = append(conditions, fmt.Sprintf("ip_address = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	args = append(args, limit)

	query := `SELECT ` + securityEventColumns + ` FROM security_events`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d`, len(args))

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query security events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.SecurityEvent, 0)
	for rows.Next() {
		event, err := scanSecurityEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating security events: %w", err)
	}

	return events, nil
}

// DeleteOlderThan removes security events recorded before cutoff
func (r *SecurityEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM security_events WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete security events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	r.logger.Info("pruned security events",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff))
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSecurityEvent(row rowScanner) (*models.SecurityEvent, error) {
	event := &models.SecurityEvent{}
	var (
		userAgent sql.NullString
		requestID sql.NullString
		details   []byte
	)

	err := row.Scan(
		&event.ID,
		&event.Type,
		&event.IP,
		&userAgent,
		&event.Path,
		&event.Method,
		&requestID,
		&event.Timestamp,
		&details,
	)
	if err != nil {
		return nil, err
	}

	event.UserAgent = userAgent.String
	event.RequestID = requestID.String
	if len(details) > 0 {
		event.Details = details
	}
	return event, nil
}

// nullableJSON stores empty details as NULL
func nullableJSON(data []byte) interface{} {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
