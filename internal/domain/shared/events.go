package shared

import (
	"time"

	"github.com/google/uuid"
)

// SettlementEvent is published after a settlement reaches a terminal state.
// Downstream consumers (analytics, notifications) subscribe to these; they are
// informational only and never drive balance mutations.
type SettlementEvent struct {
	TransactionID uuid.UUID         `json:"transaction_id"`
	Kind          TransactionKind   `json:"kind"`
	FromAccountID *uuid.UUID        `json:"from_account_id,omitempty"`
	ToAccountID   *uuid.UUID        `json:"to_account_id,omitempty"`
	Amount        int64             `json:"amount"`
	Status        TransactionStatus `json:"status"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	OccurredAt    time.Time         `json:"occurred_at"`
}

// RewardEvent is consumed from the gamification service when a badge or quest
// grants credits. EventID doubles as the idempotency key so redelivered events
// are applied at most once.
type RewardEvent struct {
	EventID       string    `json:"event_id"`
	AccountID     uuid.UUID `json:"account_id"`
	Credits       int64     `json:"credits"`
	Source        string    `json:"source"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	AwardedAt     time.Time `json:"awarded_at"`
}
