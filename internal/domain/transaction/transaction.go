package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
)

// Well-known metadata keys written by the ledger engine on finalization.
const (
	MetaBalanceAfter     = "balance_after"
	MetaFromBalanceAfter = "from_balance_after"
	MetaToBalanceAfter   = "to_balance_after"
	MetaReversal         = "reversal"

	ReversalCompleted = "completed"
	ReversalPending   = "pending"
)

// Transaction is one attempted credit movement in the append-only log.
// FromAccountID is nil for pure credits-in operations (purchases, rewards);
// ToAccountID is nil for pure credits-out operations (spends). Once the status
// is terminal the record is immutable.
type Transaction struct {
	TransactionID  uuid.UUID                `json:"transaction_id" bson:"transaction_id"`
	IdempotencyKey string                   `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	Kind           shared.TransactionKind   `json:"kind" bson:"kind"`
	FromAccountID  *uuid.UUID               `json:"from_account_id,omitempty" bson:"from_account_id,omitempty"`
	ToAccountID    *uuid.UUID               `json:"to_account_id,omitempty" bson:"to_account_id,omitempty"`
	Amount         int64                    `json:"amount" bson:"amount"`
	Status         shared.TransactionStatus `json:"status" bson:"status"`
	FailureReason  string                   `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CorrelationID  string                   `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Metadata       map[string]string        `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt      time.Time                `json:"created_at" bson:"created_at"`
	CompletedAt    *time.Time               `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// Touches reports whether the transaction references the given account on
// either side.
func (t *Transaction) Touches(accountID uuid.UUID) bool {
	if t.FromAccountID != nil && *t.FromAccountID == accountID {
		return true
	}
	return t.ToAccountID != nil && *t.ToAccountID == accountID
}

// SignedAmount returns the completed transaction's delta as seen by accountID:
// positive when the account was credited, negative when debited, zero when the
// transaction does not touch the account or is not completed. The sum of
// signed amounts over all completed transactions must equal the account's
// balance change since inception (conservation law).
func (t *Transaction) SignedAmount(accountID uuid.UUID) int64 {
	if t.Status != shared.TransactionStatusCompleted {
		return 0
	}
	var delta int64
	if t.FromAccountID != nil && *t.FromAccountID == accountID {
		delta -= t.Amount
	}
	if t.ToAccountID != nil && *t.ToAccountID == accountID {
		delta += t.Amount
	}
	return delta
}
