package account

import (
	"context"

	"github.com/google/uuid"
)

// MutateFunc applies a balance change to the account snapshot it is given.
// Returning an error aborts the swap before anything is persisted.
type MutateFunc func(*Account) error

// Repository defines account persistence operations. Balances are only ever
// written through CompareAndSwap; no caller may update them in place.
type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// CompareAndSwap applies mutate to the stored account and persists the
	// result only if the stored version still equals expectedVersion.
	// Concurrent writers on the same account serialize through this check:
	// exactly one wins, losers receive ErrVersionConflict and must re-read.
	CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate MutateFunc) (*Account, error)
}

// ErrVersionConflict indicates optimistic lock failure
type ErrVersionConflict struct {
	AccountID uuid.UUID
}

func (e ErrVersionConflict) Error() string {
	return "version conflict on account: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrVersionConflict
func (e ErrVersionConflict) Is(target error) bool {
	t, ok := target.(ErrVersionConflict)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ErrAccountNotFound indicates missing account
type ErrAccountNotFound struct {
	AccountID uuid.UUID
}

func (e ErrAccountNotFound) Error() string {
	return "account not found: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrAccountNotFound
func (e ErrAccountNotFound) Is(target error) bool {
	t, ok := target.(ErrAccountNotFound)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ErrDuplicateAccount indicates an account with the same ID already exists
type ErrDuplicateAccount struct {
	AccountID uuid.UUID
}

func (e ErrDuplicateAccount) Error() string {
	return "account already exists: " + e.AccountID.String()
}
