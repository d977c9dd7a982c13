package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Account holds one actor's two independent balances: platform credits and the
// real-currency wallet (minor units). Version is the optimistic-concurrency
// token; it increments on every successful mutation.
type Account struct {
	ID            uuid.UUID `json:"id"`
	CreditBalance int64     `json:"credit_balance"`
	WalletBalance int64     `json:"wallet_balance"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewAccount creates an account with the given opening balances
func NewAccount(id uuid.UUID, credits int64, wallet int64) (*Account, error) {
	if credits < 0 || wallet < 0 {
		return nil, ErrInvalidAmount
	}
	now := time.Now().UTC()
	return &Account{
		ID:            id,
		CreditBalance: credits,
		WalletBalance: wallet,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// AddCredits increases the credit balance
func (a *Account) AddCredits(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.CreditBalance += amount
	a.touch()
	return nil
}

// SpendCredits decreases the credit balance, never below zero
func (a *Account) SpendCredits(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.CreditBalance < amount {
		return ErrInsufficientFunds
	}
	a.CreditBalance -= amount
	a.touch()
	return nil
}

// LoadWallet increases the wallet balance
func (a *Account) LoadWallet(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.WalletBalance += amount
	a.touch()
	return nil
}

// DebitWallet decreases the wallet balance, never below zero
func (a *Account) DebitWallet(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.WalletBalance < amount {
		return ErrInsufficientFunds
	}
	a.WalletBalance -= amount
	a.touch()
	return nil
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now().UTC()
	a.Version++
}
