package reward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/ledger"
	"github.com/propmarket-credit-ledger/internal/platform/messaging/producers"
)

// EventHandler turns Kafka reward messages into ledger credit grants.
//
// Returning nil commits the offset. Poison messages and permanent business
// rejections go to the DLQ and are committed; transient failures (store
// unavailable, contention) are returned so the broker redelivers them, where
// the idempotency key makes the retry safe.
type EventHandler struct {
	pool     *WorkerPool
	producer producers.DeadLetterPublisher
	logger   *slog.Logger
}

// NewEventHandler creates a new reward event handler
func NewEventHandler(logger *slog.Logger, pool *WorkerPool, producer producers.DeadLetterPublisher) *EventHandler {
	return &EventHandler{
		pool:     pool,
		producer: producer,
		logger:   logger,
	}
}

// HandleMessage processes one reward message from Kafka
func (h *EventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.RewardEvent
	if err := json.Unmarshal(value, &event); err != nil {
		h.logger.Error("Failed to unmarshal reward event from Kafka message",
			"error", err,
			"message_key", string(key),
		)
		return h.deadLetter(ctx, key, value, fmt.Sprintf("unmarshal failed: %s", err.Error()), err)
	}

	if event.EventID == "" {
		h.logger.Error("Reward event has no event ID, cannot settle idempotently",
			"message_key", string(key),
		)
		return h.deadLetter(ctx, key, value, "missing event_id", fmt.Errorf("reward event missing event_id"))
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Received reward event",
		"event_id", event.EventID,
		"account_id", event.AccountID.String(),
		"credits", event.Credits,
		"source", event.Source,
	)

	if err := h.pool.Settle(ctx, &event); err != nil {
		// A concurrent delivery is settling the same event; redelivery will
		// replay the completed transaction.
		var dup ledger.ErrDuplicateInProgress
		if errors.As(err, &dup) {
			logger.Warn("Reward event already in flight, leaving for redelivery", "event_id", event.EventID)
			return fmt.Errorf("reward %s already in flight: %w", event.EventID, err)
		}

		if ledger.IsBusinessError(err) {
			// Redelivery can never fix these, park the event for inspection
			logger.Error("Reward event permanently rejected",
				"event_id", event.EventID,
				"account_id", event.AccountID.String(),
				"error", err,
			)
			return h.deadLetter(ctx, key, value, fmt.Sprintf("rejected: %s", err.Error()), err)
		}

		logger.Error("Failed to settle reward, leaving for redelivery",
			"event_id", event.EventID,
			"account_id", event.AccountID.String(),
			"error", err,
		)
		return fmt.Errorf("settling reward %s failed: %w", event.EventID, err)
	}

	logger.Info("Reward settled", "event_id", event.EventID)
	return nil
}

// deadLetter parks a message on the DLQ. Returns nil (commit) when the DLQ
// accepted it, the original error (redeliver) when it did not or no DLQ is
// configured.
func (h *EventHandler) deadLetter(ctx context.Context, key []byte, value []byte, reason string, original error) error {
	if h.producer == nil {
		return original
	}

	if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
		h.logger.Error("Failed to publish reward event to DLQ",
			"dlq_error", dlqErr,
			"original_error", original,
			"message_key", string(key),
		)
		return original
	}

	h.logger.Info("Reward event published to DLQ", "message_key", string(key), "reason", reason)
	return nil
}
