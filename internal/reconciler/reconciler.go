// Package reconciler sweeps the transaction log for pending entries that
// outlived their settlement attempt and finalizes them as failed. A crash
// between appending a pending transaction and finalizing it leaves the entry
// stuck; until it reaches a terminal status its idempotency key blocks every
// retry of the same operation.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/propmarket-credit-ledger/internal/config"
	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
	"github.com/propmarket-credit-ledger/internal/platform/metrics"
)

// Reconciler periodically abandons stale pending transactions. It only touches
// the transaction log, never account balances: a stale pending entry means the
// balance mutation was never applied, or the finalize after a successful
// mutation failed and was surfaced to the caller as a store error.
type Reconciler struct {
	txLog      transaction.Repository
	logger     *slog.Logger
	interval   time.Duration
	pendingTTL time.Duration
	batchSize  int
}

// NewReconciler creates a reconciler over the transaction log
func NewReconciler(logger *slog.Logger, txLog transaction.Repository, cfg *config.ReconcilerConfig) *Reconciler {
	return &Reconciler{
		txLog:      txLog,
		logger:     logger,
		interval:   cfg.Interval,
		pendingTTL: cfg.PendingTTL,
		batchSize:  cfg.BatchSize,
	}
}

// Run sweeps on the configured interval until the context is canceled
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("Starting reconciler",
		"interval", r.interval,
		"pending_ttl", r.pendingTTL,
		"batch_size", r.batchSize,
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping reconciler")
			return
		case <-ticker.C:
			if abandoned, err := r.SweepOnce(ctx); err != nil {
				r.logger.Error("Reconciliation sweep failed", "error", err)
			} else if abandoned > 0 {
				r.logger.Info("Reconciliation sweep finished", "abandoned", abandoned)
			}
		}
	}
}

// SweepOnce finalizes one batch of stale pending transactions as failed.
// Returns the number of transactions abandoned.
func (r *Reconciler) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-r.pendingTTL)

	stale, err := r.txLog.FindStalePending(ctx, cutoff, r.batchSize)
	if err != nil {
		return 0, err
	}

	abandoned := 0
	for _, tx := range stale {
		if ctx.Err() != nil {
			return abandoned, ctx.Err()
		}

		if _, err := r.txLog.Finalize(ctx, tx.TransactionID, shared.TransactionStatusFailed, string(shared.FailureReasonAbandoned), nil); err != nil {
			r.logger.Error("Failed to abandon stale transaction",
				"transaction_id", tx.TransactionID.String(),
				"created_at", tx.CreatedAt,
				"error", err,
			)
			continue
		}

		r.logger.Warn("Abandoned stale pending transaction",
			"transaction_id", tx.TransactionID.String(),
			"kind", tx.Kind,
			"idempotency_key", tx.IdempotencyKey,
			"created_at", tx.CreatedAt,
		)
		metrics.AbandonedTotal.Inc()
		abandoned++
	}

	return abandoned, nil
}
