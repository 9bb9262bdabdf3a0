package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/crm-gateway/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// SecurityEventFilter narrows a security event listing. Zero fields match
// everything.
type SecurityEventFilter struct {
	Type  models.SecurityEventType
	IP    string
	Since time.Time
	Limit int
}

// SecurityEventRepository persists security events. Events are write-once.
type SecurityEventRepository interface {
	// Insert stores a new event
	Insert(ctx context.Context, event *models.SecurityEvent) error

	// GetByID retrieves an event by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.SecurityEvent, error)

	// List returns matching events, newest first
	List(ctx context.Context, filter SecurityEventFilter) ([]*models.SecurityEvent, error)

	// DeleteOlderThan removes events recorded before cutoff
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repositories groups all repositories
type Repositories struct {
	SecurityEvents SecurityEventRepository
}
