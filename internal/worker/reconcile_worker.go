package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teerapat-ch/eventhub/internal/domain"
	"github.com/teerapat-ch/eventhub/internal/metrics"
	"github.com/teerapat-ch/eventhub/internal/repository"
	"github.com/teerapat-ch/eventhub/pkg/logger"
	"github.com/teerapat-ch/eventhub/pkg/retry"
)

// ReconcileWorkerConfig contains configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	// ScanInterval is the interval between reconciliation sweeps
	ScanInterval time.Duration
	// BatchSize is the number of events to repair in each sweep page
	BatchSize int
}

// DefaultReconcileWorkerConfig returns default configuration
func DefaultReconcileWorkerConfig() *ReconcileWorkerConfig {
	return &ReconcileWorkerConfig{
		ScanInterval: 30 * time.Second,
		BatchSize:    100,
	}
}

// ReconcileWorker sweeps live events in PostgreSQL and reseeds the active
// membership store with the authoritative state. A flushed or cold Redis
// keyspace recovers within one sweep; events that already match are simply
// rewritten.
type ReconcileWorker struct {
	events  repository.EventRepository
	source  repository.MembershipStore
	target  repository.MembershipStore
	config  *ReconcileWorkerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewReconcileWorker creates a new reconcile worker. Source is the durable
// store (Postgres), target is the store serving admissions.
func NewReconcileWorker(
	events repository.EventRepository,
	source repository.MembershipStore,
	target repository.MembershipStore,
	config *ReconcileWorkerConfig,
) *ReconcileWorker {
	if config == nil {
		config = DefaultReconcileWorkerConfig()
	}
	if config.ScanInterval <= 0 {
		config.ScanInterval = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &ReconcileWorker{
		events: events,
		source: source,
		target: target,
		config: config,
		log:    logger.Get(),
		stopCh: make(chan struct{}),
	}
}

// Start starts the reconcile worker
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reconcile worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting reconcile worker")

	w.wg.Add(1)
	go w.scan(ctx)

	return nil
}

// Stop stops the reconcile worker
func (w *ReconcileWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping reconcile worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Reconcile worker stopped")
}

// scan runs sweeps on the configured interval
func (w *ReconcileWorker) scan(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep pages through live events and reseeds each one into the target store
func (w *ReconcileWorker) Sweep(ctx context.Context) {
	reseeded := 0
	offset := 0
	for {
		ids, err := w.events.ListActiveIDs(ctx, w.config.BatchSize, offset)
		if err != nil {
			w.log.Error(fmt.Sprintf("Failed to list events for reconciliation: %v", err))
			break
		}
		if len(ids) == 0 {
			break
		}

		if metrics.ReconcileBacklog != nil {
			metrics.ReconcileBacklog.Add(ctx, int64(len(ids)))
		}

		for _, id := range ids {
			if err := w.reconcileEvent(ctx, id); err != nil {
				w.log.Error(fmt.Sprintf("Failed to reconcile event %s: %v", id, err))
			} else {
				reseeded++
			}
			if metrics.ReconcileBacklog != nil {
				metrics.ReconcileBacklog.Add(ctx, -1)
			}
		}

		if len(ids) < w.config.BatchSize {
			break
		}
		offset += w.config.BatchSize
	}

	w.log.Info(fmt.Sprintf("Reconcile sweep completed, %d events reseeded", reseeded))
}

// reconcileEvent copies one event's authoritative membership state into the
// target store, retrying transient failures
func (w *ReconcileWorker) reconcileEvent(ctx context.Context, eventID string) error {
	snapshot, err := w.source.GetSnapshot(ctx, eventID)
	if err != nil {
		// Deleted between the listing and the read; drop the target copy
		if errors.Is(err, domain.ErrEventNotFound) {
			return w.target.RemoveEvent(ctx, eventID)
		}
		return fmt.Errorf("failed to read source state: %w", err)
	}

	retryCfg := &retry.Config{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	}
	return retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		return w.target.SeedEvent(ctx, snapshot)
	})
}
