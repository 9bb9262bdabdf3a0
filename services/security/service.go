// Package security records rejections and anomalies. Every event is written
// to the structured log; when a repository is attached the event is also
// persisted by a background worker pool.
package security

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/upb/crm-gateway/models"
	"github.com/upb/crm-gateway/repositories"
	"go.uber.org/zap"
)

// ErrNoStore is returned by read operations when no repository is attached
var ErrNoStore = errors.New("security event store not configured")

// Service handles security event logging and asynchronous persistence
type Service struct {
	repo        repositories.SecurityEventRepository
	txManager   repositories.TransactionManager
	logger      *zap.Logger
	eventChan   chan *models.SecurityEvent
	workerCount int
	bufferSize  int
	batchSize   int
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// Config holds configuration for the Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
	BatchSize   int // Events written per transaction
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  10000,
		WorkerCount: 5,
		BatchSize:   50,
	}
}

// NewService creates a new Service. repo and txManager may be nil, in which
// case events are only logged.
func NewService(repo repositories.SecurityEventRepository, txManager repositories.TransactionManager, logger *zap.Logger, config Config) *Service {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}

	return &Service{
		repo:        repo,
		txManager:   txManager,
		logger:      logger,
		eventChan:   make(chan *models.SecurityEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		batchSize:   config.BatchSize,
	}
}

// Start starts the background workers. It is a no-op without a repository.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("security event service already started")
	}
	if s.stopped {
		return fmt.Errorf("security event service stopped")
	}
	s.started = true

	if s.repo == nil {
		s.logger.Info("security events will be logged only")
		return nil
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.logger.Info("started security event service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting events and waits for queued ones to be written
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("security event service not started")
	}
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	pending := len(s.eventChan)
	close(s.eventChan)
	s.mu.Unlock()

	s.logger.Info("stopping security event service", zap.Int("pending_events", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("security event service stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("security event service stop timeout after %v", timeout)
	}
}

// Record logs event and queues it for persistence. It never blocks.
func (s *Service) Record(ctx context.Context, event *models.SecurityEvent) {
	if event == nil {
		return
	}

	s.logger.Warn("security event",
		zap.String("type", string(event.Type)),
		zap.String("ip", event.IP),
		zap.String("userAgent", event.UserAgent),
		zap.String("path", event.Path),
		zap.String("method", event.Method),
		zap.String("requestId", event.RequestID),
		zap.Time("timestamp", event.Timestamp),
		zap.ByteString("details", event.Details))

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.repo == nil || !s.started || s.stopped {
		return
	}

	select {
	case s.eventChan <- event:
	default:
		s.logger.Warn("security event channel full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("ip", event.IP))
	}
}

// List returns persisted events matching filter
func (s *Service) List(ctx context.Context, filter repositories.SecurityEventFilter) ([]*models.SecurityEvent, error) {
	if s.repo == nil {
		return nil, ErrNoStore
	}
	return s.repo.List(ctx, filter)
}

// Prune deletes persisted events older than retention
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if s.repo == nil {
		return 0, ErrNoStore
	}
	return s.repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-retention))
}

// Persistent reports whether events are stored beyond the log
func (s *Service) Persistent() bool {
	return s.repo != nil
}

// worker drains the channel in batches
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("security event worker started", zap.Int("worker_id", id))

	for event := range s.eventChan {
		batch := s.collect(event)
		if err := s.writeBatch(batch); err != nil {
			s.logger.Error("failed to persist security events",
				zap.Int("worker_id", id),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
		}
	}

	s.logger.Debug("security event worker stopped", zap.Int("worker_id", id))
}

// collect gathers first plus whatever is already queued, up to batchSize
func (s *Service) collect(first *models.SecurityEvent) []*models.SecurityEvent {
	batch := []*models.SecurityEvent{first}
	for len(batch) < s.batchSize {
		select {
		case event, ok := <-s.eventChan:
			if !ok {
				return batch
			}
			batch = append(batch, event)
		default:
			return batch
		}
	}
	return batch
}

func (s *Service) writeBatch(batch []*models.SecurityEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	insert := func(ctx context.Context) error {
		for _, event := range batch {
			if err := s.repo.Insert(ctx, event); err != nil {
				return fmt.Errorf("failed to insert security event %s: %w", event.ID, err)
			}
		}
		return nil
	}

	if s.txManager == nil || len(batch) == 1 {
		return insert(ctx)
	}
	return s.txManager.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		return insert(ctx)
	})
}

// GetStats returns statistics about the service
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:    s.bufferSize,
		PendingEvents: len(s.eventChan),
		WorkerCount:   s.workerCount,
		Started:       s.started,
		Persistent:    s.repo != nil,
	}
}

// Stats represents security event service statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
	Persistent    bool
}
