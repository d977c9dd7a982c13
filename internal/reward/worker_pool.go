// Package reward consumes gamification reward events from Kafka and settles
// them as credit grants. Settlement runs on a bounded worker pool; redelivered
// events are deduplicated by the ledger engine through the event ID.
package reward

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// Settler settles a single reward grant. Satisfied by the settlement
// reward adapter.
type Settler interface {
	SettleReward(ctx context.Context, accountID uuid.UUID, rewardEventID string, credits int64, source string) (*ledger.Receipt, error)
}

// WorkerPool bounds concurrent reward settlements with an ants pool. The
// submitting goroutine blocks until its settlement finishes, so the consumer's
// commit ordering is preserved while slow settlements cannot pile up unbounded
// goroutines.
type WorkerPool struct {
	settler Settler
	pool    *ants.Pool
	logger  *slog.Logger
}

type WorkerPoolConfig struct {
	Size int
}

// NewWorkerPool creates a worker pool of the given size on top of a settler
func NewWorkerPool(logger *slog.Logger, settler Settler, cfg WorkerPoolConfig) (*WorkerPool, error) {
	pool, err := ants.NewPool(cfg.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPool{
		settler: settler,
		pool:    pool,
		logger:  logger,
	}, nil
}

// Settle submits a reward event to the pool and waits for the result
func (p *WorkerPool) Settle(ctx context.Context, event *shared.RewardEvent) error {
	logger := p.logger
	if event.CorrelationID != "" {
		logger = p.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Submitting reward to worker pool",
		"event_id", event.EventID,
		"account_id", event.AccountID.String(),
		"credits", event.Credits,
	)

	resultChan := make(chan error, 1)

	eventCopy := *event
	err := p.pool.Submit(func() {
		_, settleErr := p.settler.SettleReward(ctx, eventCopy.AccountID, eventCopy.EventID, eventCopy.Credits, eventCopy.Source)
		resultChan <- settleErr
		close(resultChan)
	})
	if err != nil {
		close(resultChan)
		logger.Error("Failed to submit reward to worker pool",
			"event_id", event.EventID,
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown releases the worker pool
func (p *WorkerPool) Shutdown() {
	p.logger.Info("Shutting down reward worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

// Running returns the number of busy workers
func (p *WorkerPool) Running() int {
	return p.pool.Running()
}

// Capacity returns the pool capacity
func (p *WorkerPool) Capacity() int {
	return p.pool.Cap()
}
