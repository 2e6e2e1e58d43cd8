package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/communa-labs/ticketing/internal/metrics"
	"github.com/communa-labs/ticketing/internal/service"
	"github.com/communa-labs/ticketing/pkg/logger"
)

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// SweepInterval is the interval between sweeps for lapsed holds
	SweepInterval time.Duration
	// BatchSize is the number of tickets to process in each sweep
	BatchSize int
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		SweepInterval: 30 * time.Second,
		BatchSize:     100,
	}
}

// ExpiryWorker periodically expires reservation holds that lapsed
// without payment, returning their inventory units to the pool.
type ExpiryWorker struct {
	ticketService service.TicketService
	config        *ExpiryWorkerConfig
	log           *logger.Logger
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool

	// Stats
	totalExpired   int64
	lastSweepTime  time.Time
	lastSweepCount int
}

// ExpiryWorkerStats reports worker statistics
type ExpiryWorkerStats struct {
	IsRunning      bool      `json:"is_running"`
	TotalExpired   int64     `json:"total_expired"`
	LastSweepTime  time.Time `json:"last_sweep_time"`
	LastSweepCount int       `json:"last_sweep_count"`
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(ticketService service.TicketService, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	return &ExpiryWorker{
		ticketService: ticketService,
		config:        config,
		log:           logger.Get(),
		stopCh:        make(chan struct{}),
	}
}

// Start starts the expiry worker
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry worker")

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop stops the expiry worker and waits for the current sweep to finish
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry worker stopped")
}

func (w *ExpiryWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep runs a single expiry pass
func (w *ExpiryWorker) sweep(ctx context.Context) {
	start := time.Now()

	count, err := w.ticketService.ExpireStale(ctx, w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Expiry sweep failed: %v", err))
		return
	}

	metrics.ExpirySweepDuration.Observe(time.Since(start).Seconds())

	w.mu.Lock()
	w.lastSweepTime = start
	w.lastSweepCount = count
	w.totalExpired += int64(count)
	w.mu.Unlock()

	if count > 0 {
		w.log.Info(fmt.Sprintf("Expired %d lapsed reservation holds", count))
	}
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ExpiryWorkerStats{
		IsRunning:      w.running,
		TotalExpired:   w.totalExpired,
		LastSweepTime:  w.lastSweepTime,
		LastSweepCount: w.lastSweepCount,
	}
}
