// Package settlement hosts the adapters between validated business requests
// and the ledger engine. Each adapter owns one flow: it derives the
// idempotency key and metadata for that flow, invokes exactly one engine
// operation, and publishes a settlement event once the operation completes.
package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// EventPublisher publishes terminal settlement events. Satisfied by the Kafka
// settlement producer; nil disables publishing.
type EventPublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// publishEvent emits a settlement event for a freshly completed operation.
// Best-effort: a publish failure is logged, never surfaced to the caller.
// Replayed receipts already produced their event on the first pass.
func publishEvent(ctx context.Context, logger *slog.Logger, events EventPublisher, receipt *ledger.Receipt) {
	if events == nil || receipt == nil || receipt.Replayed {
		return
	}
	tx := receipt.Transaction
	evt := &shared.SettlementEvent{
		TransactionID: tx.TransactionID,
		Kind:          tx.Kind,
		FromAccountID: tx.FromAccountID,
		ToAccountID:   tx.ToAccountID,
		Amount:        tx.Amount,
		Status:        tx.Status,
		Metadata:      tx.Metadata,
		OccurredAt:    time.Now().UTC(),
	}

	key := ""
	switch {
	case tx.FromAccountID != nil:
		key = tx.FromAccountID.String()
	case tx.ToAccountID != nil:
		key = tx.ToAccountID.String()
	}

	if err := events.Publish(ctx, key, evt); err != nil {
		logger.Warn("Settlement event publish failed",
			"transaction_id", tx.TransactionID,
			"kind", tx.Kind,
			"error", err,
		)
	}
}
