package shared

import "errors"

var (
	ErrInvalidTransactionKind = errors.New("invalid transaction kind")
)

// TransactionKind defines the business meaning of a credit movement
type TransactionKind string

const (
	KindCreditPurchase TransactionKind = "credit_purchase"
	KindCreditSpend    TransactionKind = "credit_spend"
	KindCreditTransfer TransactionKind = "credit_transfer"
	KindRewardGrant    TransactionKind = "reward_grant"
	KindWalletLoad     TransactionKind = "wallet_load"
	KindWalletDebit    TransactionKind = "wallet_debit"
)

// BalanceKind selects which of the two independent account balances a kind moves
type BalanceKind string

const (
	BalanceCredits BalanceKind = "credits"
	BalanceWallet  BalanceKind = "wallet"
)

// Balance returns the balance a transaction kind operates on
func (k TransactionKind) Balance() BalanceKind {
	switch k {
	case KindWalletLoad, KindWalletDebit:
		return BalanceWallet
	default:
		return BalanceCredits
	}
}

// Valid reports whether k is a known transaction kind
func (k TransactionKind) Valid() bool {
	switch k {
	case KindCreditPurchase, KindCreditSpend, KindCreditTransfer,
		KindRewardGrant, KindWalletLoad, KindWalletDebit:
		return true
	}
	return false
}

// TransactionStatus defines transaction lifecycle states
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Terminal reports whether the status is final. Terminal transactions are immutable.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// FailureReason defines transaction failure categories
type FailureReason string

const (
	FailureReasonAccountNotFound   FailureReason = "ACCOUNT_NOT_FOUND"
	FailureReasonInsufficientFunds FailureReason = "INSUFFICIENT_FUNDS"
	FailureReasonInvalidAmount     FailureReason = "INVALID_AMOUNT"
	FailureReasonConflictExhausted FailureReason = "VERSION_CONFLICT_EXHAUSTED"
	FailureReasonStoreUnavailable  FailureReason = "STORE_UNAVAILABLE"
	FailureReasonAbandoned         FailureReason = "ABANDONED"
	FailureReasonUnknownError      FailureReason = "UNKNOWN_ERROR"
)
