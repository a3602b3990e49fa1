package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/mlops-service/models"
	"github.com/upb/mlops-service/repositories"
	"go.uber.org/zap"
)

// AsyncNotifier queues events and writes them from a pool of workers.
// Notify never blocks: when the buffer is full the event is dropped and an
// error is returned for the caller to log.
type AsyncNotifier struct {
	repo        repositories.MetricEventRepository
	logger      *zap.Logger
	eventChan   chan *models.MetricEvent
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	started     bool
	stopped     bool
	mu          sync.RWMutex
}

// Config holds configuration for the AsyncNotifier
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewAsyncNotifier creates a new AsyncNotifier instance
func NewAsyncNotifier(repo repositories.MetricEventRepository, logger *zap.Logger, config Config) *AsyncNotifier {
	return &AsyncNotifier{
		repo:        repo,
		logger:      logger,
		eventChan:   make(chan *models.MetricEvent, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
	}
}

// Start starts the background workers
func (n *AsyncNotifier) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.started {
		return fmt.Errorf("persistence notifier already started")
	}

	for i := 0; i < n.workerCount; i++ {
		n.wg.Add(1)
		go n.worker(i)
	}

	n.started = true
	n.logger.Info("started persistence workers",
		zap.Int("worker_count", n.workerCount),
		zap.Int("buffer_size", n.bufferSize))

	return nil
}

// Stop closes the queue and waits for pending events to be written
func (n *AsyncNotifier) Stop(timeout time.Duration) error {
	n.mu.Lock()
	if !n.started || n.stopped {
		n.mu.Unlock()
		return fmt.Errorf("persistence notifier not running")
	}
	n.stopped = true
	close(n.eventChan)
	n.mu.Unlock()

	n.logger.Info("stopping persistence workers", zap.Int("pending_events", len(n.eventChan)))

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("persistence workers stopped gracefully")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("persistence notifier stop timeout after %v", timeout)
	}
}

// Notify implements Notifier
func (n *AsyncNotifier) Notify(_ context.Context, event *models.MetricEvent) error {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if !n.started || n.stopped {
		return fmt.Errorf("persistence notifier not running")
	}

	select {
	case n.eventChan <- event:
		return nil
	default:
		n.logger.Warn("persistence buffer full, dropping event",
			zap.String("business_id", event.Business()))
		return fmt.Errorf("persistence buffer full")
	}
}

func (n *AsyncNotifier) worker(id int) {
	defer n.wg.Done()

	n.logger.Debug("persistence worker started", zap.Int("worker_id", id))

	for event := range n.eventChan {
		if err := n.write(event); err != nil {
			n.logger.Error("failed to persist metric event",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("business_id", event.Business()))
		}
	}

	n.logger.Debug("persistence worker stopped", zap.Int("worker_id", id))
}

func (n *AsyncNotifier) write(event *models.MetricEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return n.repo.Insert(ctx, event)
}

// GetStats returns statistics about the notifier
func (n *AsyncNotifier) GetStats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	return Stats{
		BufferSize:    n.bufferSize,
		PendingEvents: len(n.eventChan),
		WorkerCount:   n.workerCount,
		Started:       n.started && !n.stopped,
	}
}

// Stats represents persistence worker statistics
type Stats struct {
	BufferSize    int
	PendingEvents int
	WorkerCount   int
	Started       bool
}
