// Package postgres provides the PostgreSQL implementation of the account
// store. Balance writes go through a version-guarded UPDATE so concurrent
// writers on the same account serialize without row locks.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/propmarket-credit-ledger/internal/domain/account"
	"github.com/propmarket-credit-ledger/internal/platform/persistence"
)

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewAccountRepository creates a new PostgreSQL account repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewAccountRepository(logger *slog.Logger, db *persistence.PostgresDB) account.Repository {
	return &AccountRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic
// operations across multiple repository calls.
func (r *AccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return &AccountRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new account. A duplicate ID surfaces as ErrDuplicateAccount
// via the primary key constraint.
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	query := `
		INSERT INTO accounts (id, credit_balance, wallet_balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		acc.ID,
		acc.CreditBalance,
		acc.WalletBalance,
		acc.Version,
		acc.CreatedAt,
		acc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create account", "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return account.ErrDuplicateAccount{AccountID: acc.ID}
	}

	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `
		SELECT id, credit_balance, wallet_balance, version, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var acc account.Account
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&acc.ID,
		&acc.CreditBalance,
		&acc.WalletBalance,
		&acc.Version,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		r.logger.Error("Failed to get account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acc, nil
}

// CompareAndSwap reads the account, applies mutate to the snapshot, and
// persists the result with a version-guarded UPDATE. Zero rows affected means
// another writer got there first.
func (r *AccountRepository) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate account.MutateFunc) (*account.Account, error) {
	acc, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if acc.Version != expectedVersion {
		return nil, account.ErrVersionConflict{AccountID: id}
	}

	if err := mutate(acc); err != nil {
		return nil, err
	}

	query := `
		UPDATE accounts
		SET credit_balance = $1, wallet_balance = $2, version = $3, updated_at = $4
		WHERE id = $5 AND version = $6
	`

	result, err := r.querier.Exec(ctx, query,
		acc.CreditBalance,
		acc.WalletBalance,
		acc.Version,
		acc.UpdatedAt,
		acc.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to swap account", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to swap account: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, account.ErrVersionConflict{AccountID: id}
	}

	return acc, nil
}
