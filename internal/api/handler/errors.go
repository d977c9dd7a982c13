package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/propmarket-credit-ledger/internal/domain/account"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// respondEngineError maps a ledger engine error onto a stable HTTP error code.
// Business-rule rejections become 4xx; transient infrastructure failures
// become 503 so callers know a retry with the same idempotency key is safe.
func respondEngineError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidAmount):
		RespondBadRequest(c, "Amount must be a positive integer")
	case errors.Is(err, ledger.ErrSameAccount):
		RespondBadRequest(c, "Transfer endpoints must be different accounts")
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, account.ErrInsufficientFunds):
		RespondUnprocessable(c, "INSUFFICIENT_FUNDS", "Insufficient credits for this operation")
	case errors.Is(err, ledger.ErrDuplicateInProgress{}):
		RespondConflict(c, "DUPLICATE_IN_PROGRESS", "An identical operation is already in flight, retry later")
	case errors.Is(err, ledger.ErrRetriesExhausted{}):
		RespondServiceUnavailable(c, "VERSION_CONFLICT_EXHAUSTED", "The account is under heavy contention, retry later")
	default:
		var unsupported ledger.ErrUnsupportedKind
		if errors.As(err, &unsupported) {
			RespondBadRequest(c, unsupported.Error())
			return
		}
		var unavailable *ledger.StoreUnavailableError
		if errors.As(err, &unavailable) {
			logger.Error("Store unavailable during settlement", "error", err)
			RespondServiceUnavailable(c, "STORE_UNAVAILABLE", "The ledger store is temporarily unavailable, retry later")
			return
		}
		logger.Error("Unexpected settlement error", "error", err)
		RespondInternalError(c)
	}
}
