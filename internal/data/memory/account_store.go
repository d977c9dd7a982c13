// Package memory provides in-process implementations of the account store and
// transaction log. The compare-and-swap contract is identical to the durable
// backends, which makes the package suitable both for local development and
// for exercising the ledger engine's concurrency behavior in tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/account"
)

// AccountStore implements account.Repository over a mutex-guarded map
type AccountStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*account.Account
}

// NewAccountStore creates an empty in-memory account store
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[uuid.UUID]*account.Account),
	}
}

// Create stores a new account
func (s *AccountStore) Create(ctx context.Context, acc *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[acc.ID]; exists {
		return account.ErrDuplicateAccount{AccountID: acc.ID}
	}
	cp := *acc
	s.accounts[acc.ID] = &cp
	return nil
}

// GetByID returns a copy of the stored account
func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	cp := *acc
	return &cp, nil
}

// CompareAndSwap applies mutate to the stored account iff the version matches.
// The mutation runs on a copy; a rejected mutation leaves the store untouched.
func (s *AccountStore) CompareAndSwap(ctx context.Context, id uuid.UUID, expectedVersion int64, mutate account.MutateFunc) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	if current.Version != expectedVersion {
		return nil, account.ErrVersionConflict{AccountID: id}
	}

	next := *current
	if err := mutate(&next); err != nil {
		return nil, err
	}
	s.accounts[id] = &next

	cp := next
	return &cp, nil
}
