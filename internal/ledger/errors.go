package ledger

import (
	"errors"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/account"
	"github.com/propmarket-credit-ledger/internal/domain/shared"
)

// ErrSameAccount rejects transfers whose endpoints are the same account
var ErrSameAccount = errors.New("transfer endpoints must be different accounts")

// ErrDuplicateInProgress indicates a concurrent operation holding the same
// idempotency key has not reached a terminal state yet. The caller must retry
// later rather than re-attempt the mutation.
type ErrDuplicateInProgress struct {
	IdempotencyKey string
	Kind           shared.TransactionKind
}

func (e ErrDuplicateInProgress) Error() string {
	return "operation already in progress for idempotency key: " + e.IdempotencyKey
}

// Is implements the errors.Is interface for ErrDuplicateInProgress
func (e ErrDuplicateInProgress) Is(target error) bool {
	t, ok := target.(ErrDuplicateInProgress)
	if !ok {
		return false
	}
	return t.IdempotencyKey == "" || (e.IdempotencyKey == t.IdempotencyKey && e.Kind == t.Kind)
}

// ErrRetriesExhausted indicates the version-conflict retry budget ran out.
// Transient: the caller may safely retry the whole operation thanks to
// idempotency keys.
type ErrRetriesExhausted struct {
	AccountID uuid.UUID
}

func (e ErrRetriesExhausted) Error() string {
	return "version conflict retries exhausted for account: " + e.AccountID.String()
}

// Is implements the errors.Is interface for ErrRetriesExhausted
func (e ErrRetriesExhausted) Is(target error) bool {
	t, ok := target.(ErrRetriesExhausted)
	if !ok {
		return false
	}
	return t.AccountID == uuid.Nil || e.AccountID == t.AccountID
}

// ErrUnsupportedKind indicates the transaction kind does not match the operation
type ErrUnsupportedKind struct {
	Kind      shared.TransactionKind
	Operation string
}

func (e ErrUnsupportedKind) Error() string {
	return "transaction kind " + string(e.Kind) + " is not valid for operation " + e.Operation
}

// StoreUnavailableError wraps a transient infrastructure failure so callers can
// distinguish "retry later" from business-rule rejections.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return "store unavailable during " + e.Op + ": " + e.Err.Error()
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsBusinessError reports whether err is a caller-facing business-rule
// rejection. Business errors are never retried automatically; everything else
// is transient infrastructure failure.
func IsBusinessError(err error) bool {
	if errors.Is(err, account.ErrInvalidAmount) ||
		errors.Is(err, account.ErrInsufficientFunds) ||
		errors.Is(err, ErrSameAccount) {
		return true
	}
	var notFound account.ErrAccountNotFound
	if errors.As(err, &notFound) {
		return true
	}
	var dup ErrDuplicateInProgress
	if errors.As(err, &dup) {
		return true
	}
	var unsupported ErrUnsupportedKind
	return errors.As(err, &unsupported)
}

// failureReasonFor maps an operation error to the reason recorded on the
// failed transaction.
func failureReasonFor(err error) shared.FailureReason {
	switch {
	case errors.Is(err, account.ErrInsufficientFunds):
		return shared.FailureReasonInsufficientFunds
	case errors.Is(err, account.ErrInvalidAmount):
		return shared.FailureReasonInvalidAmount
	case errors.Is(err, account.ErrAccountNotFound{}):
		return shared.FailureReasonAccountNotFound
	case errors.Is(err, ErrRetriesExhausted{}):
		return shared.FailureReasonConflictExhausted
	default:
		var unavailable *StoreUnavailableError
		if errors.As(err, &unavailable) {
			return shared.FailureReasonStoreUnavailable
		}
		return shared.FailureReasonUnknownError
	}
}
