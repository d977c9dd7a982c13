package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
)

// Repository manages the append-only transaction log
type Repository interface {
	// Append stores a new transaction in pending status. An append racing
	// another live entry with the same (idempotency key, kind) pair loses
	// with ErrDuplicateKey; entries whose previous attempt failed may be
	// appended again.
	Append(ctx context.Context, tx *Transaction) error

	// Finalize performs the one-time transition to a terminal status and
	// merges metadata into the record. Finalizing an already-terminal
	// transaction is a no-op that returns the existing record unchanged.
	Finalize(ctx context.Context, transactionID uuid.UUID, status shared.TransactionStatus, reason string, metadata map[string]string) (*Transaction, error)

	// FindByIdempotencyKey returns the newest transaction for the key/kind
	// pair, or nil when none exists.
	FindByIdempotencyKey(ctx context.Context, key string, kind shared.TransactionKind) (*Transaction, error)

	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Transaction, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)

	// FindStalePending returns pending transactions created before the
	// cutoff, oldest first. Feed for the reconciliation sweep.
	FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*Transaction, error)
}

// ErrNotFound indicates a missing transaction
type ErrNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrNotFound
func (e ErrNotFound) Is(target error) bool {
	t, ok := target.(ErrNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || e.TransactionID == t.TransactionID
}

// ErrDuplicateKey indicates a live transaction already holds the idempotency key
type ErrDuplicateKey struct {
	IdempotencyKey string
	Kind           shared.TransactionKind
}

func (e ErrDuplicateKey) Error() string {
	return "duplicate idempotency key: " + e.IdempotencyKey + " (" + string(e.Kind) + ")"
}

// Is implements the errors.Is interface for ErrDuplicateKey
func (e ErrDuplicateKey) Is(target error) bool {
	t, ok := target.(ErrDuplicateKey)
	if !ok {
		return false
	}
	return t.IdempotencyKey == "" || (e.IdempotencyKey == t.IdempotencyKey && e.Kind == t.Kind)
}
