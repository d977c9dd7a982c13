package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
)

type keyIndex struct {
	key  string
	kind shared.TransactionKind
}

// TransactionLog implements transaction.Repository in memory
type TransactionLog struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*transaction.Transaction
	ordered []uuid.UUID // append order, used for stable listing
}

// NewTransactionLog creates an empty in-memory transaction log
func NewTransactionLog() *TransactionLog {
	return &TransactionLog{
		byID: make(map[uuid.UUID]*transaction.Transaction),
	}
}

// Append stores a new pending transaction. A live (pending or completed)
// transaction with the same idempotency key and kind rejects the append;
// a previously failed attempt does not block a retry.
func (l *TransactionLog) Append(ctx context.Context, tx *transaction.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tx.IdempotencyKey != "" {
		for _, existing := range l.byID {
			if existing.IdempotencyKey == tx.IdempotencyKey &&
				existing.Kind == tx.Kind &&
				existing.Status != shared.TransactionStatusFailed {
				return transaction.ErrDuplicateKey{IdempotencyKey: tx.IdempotencyKey, Kind: tx.Kind}
			}
		}
	}

	cp := cloneTransaction(tx)
	cp.Status = shared.TransactionStatusPending
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	l.byID[cp.TransactionID] = cp
	l.ordered = append(l.ordered, cp.TransactionID)

	*tx = *cloneTransaction(cp)
	return nil
}

// Finalize transitions the transaction to a terminal status exactly once
func (l *TransactionLog) Finalize(ctx context.Context, transactionID uuid.UUID, status shared.TransactionStatus, reason string, metadata map[string]string) (*transaction.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.byID[transactionID]
	if !ok {
		return nil, transaction.ErrNotFound{TransactionID: transactionID}
	}
	if existing.Status.Terminal() {
		return cloneTransaction(existing), nil
	}

	existing.Status = status
	existing.FailureReason = reason
	now := time.Now().UTC()
	existing.CompletedAt = &now
	if len(metadata) > 0 {
		if existing.Metadata == nil {
			existing.Metadata = make(map[string]string, len(metadata))
		}
		for k, v := range metadata {
			existing.Metadata[k] = v
		}
	}

	return cloneTransaction(existing), nil
}

// FindByIdempotencyKey returns the newest transaction for the key/kind pair
func (l *TransactionLog) FindByIdempotencyKey(ctx context.Context, key string, kind shared.TransactionKind) (*transaction.Transaction, error) {
	if key == "" {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Walk append order backwards so retries shadow failed attempts
	for i := len(l.ordered) - 1; i >= 0; i-- {
		tx := l.byID[l.ordered[i]]
		if tx.IdempotencyKey == key && tx.Kind == kind {
			return cloneTransaction(tx), nil
		}
	}
	return nil, nil
}

// GetByTransactionID retrieves a transaction by ID
func (l *TransactionLog) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*transaction.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.byID[transactionID]
	if !ok {
		return nil, transaction.ErrNotFound{TransactionID: transactionID}
	}
	return cloneTransaction(tx), nil
}

// GetByAccountID returns paginated transactions touching the account, newest first
func (l *TransactionLog) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []*transaction.Transaction
	for _, id := range l.ordered {
		tx := l.byID[id]
		if tx.Touches(accountID) {
			matched = append(matched, tx)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]*transaction.Transaction, 0, end-offset)
	for _, tx := range matched[offset:end] {
		out = append(out, cloneTransaction(tx))
	}
	return out, nil
}

// CountByAccountID counts transactions touching the account
func (l *TransactionLog) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var count int64
	for _, tx := range l.byID {
		if tx.Touches(accountID) {
			count++
		}
	}
	return count, nil
}

// FindStalePending returns pending transactions created before the cutoff, oldest first
func (l *TransactionLog) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stale []*transaction.Transaction
	for _, id := range l.ordered {
		tx := l.byID[id]
		if tx.Status == shared.TransactionStatusPending && tx.CreatedAt.Before(olderThan) {
			stale = append(stale, tx)
		}
	}
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].CreatedAt.Before(stale[j].CreatedAt)
	})

	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	out := make([]*transaction.Transaction, 0, len(stale))
	for _, tx := range stale {
		out = append(out, cloneTransaction(tx))
	}
	return out, nil
}

func cloneTransaction(tx *transaction.Transaction) *transaction.Transaction {
	cp := *tx
	if tx.FromAccountID != nil {
		from := *tx.FromAccountID
		cp.FromAccountID = &from
	}
	if tx.ToAccountID != nil {
		to := *tx.ToAccountID
		cp.ToAccountID = &to
	}
	if tx.CompletedAt != nil {
		at := *tx.CompletedAt
		cp.CompletedAt = &at
	}
	if tx.Metadata != nil {
		cp.Metadata = make(map[string]string, len(tx.Metadata))
		for k, v := range tx.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
