package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/account"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// LedgerHandler exposes account and transaction reads plus account creation
type LedgerHandler struct {
	engine   ledger.Engine
	accounts account.Repository
	txLog    transaction.Repository
	logger   *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, engine ledger.Engine, accounts account.Repository, txLog transaction.Repository) *LedgerHandler {
	return &LedgerHandler{
		engine:   engine,
		accounts: accounts,
		txLog:    txLog,
		logger:   logger,
	}
}

// CreateAccount opens a new credit account with optional opening balances
func (h *LedgerHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	id, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acc, err := account.NewAccount(id, req.InitialCredits, req.InitialWallet)
	if err != nil {
		RespondBadRequest(c, "Opening balances must not be negative")
		return
	}

	if err := h.accounts.Create(c.Request.Context(), acc); err != nil {
		var dup account.ErrDuplicateAccount
		if errors.As(err, &dup) {
			RespondConflict(c, "ACCOUNT_EXISTS", "Account already exists")
			return
		}
		h.logger.Error("Failed to create account", "account_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, AccountResponse{
		ID:            acc.ID.String(),
		CreditBalance: acc.CreditBalance,
		WalletBalance: acc.WalletBalance,
		Version:       acc.Version,
		CreatedAt:     acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     acc.UpdatedAt.Format(time.RFC3339),
	})
}

// GetBalance returns the account's current balances
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	bal, err := h.engine.GetBalance(c.Request.Context(), id)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, BalanceResponse{
		AccountID:     bal.AccountID.String(),
		CreditBalance: bal.CreditBalance,
		WalletBalance: bal.WalletBalance,
		Version:       bal.Version,
	})
}

// GetTransaction returns one transaction log entry by ID
func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	tx, err := h.txLog.GetByTransactionID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, transaction.ErrNotFound{}) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "transaction_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapTransactionToResponse(tx))
}

// GetTransactionsByAccount returns the paginated transaction history of an account
func (h *LedgerHandler) GetTransactionsByAccount(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	offset := (params.Page - 1) * params.PerPage
	txs, err := h.txLog.GetByAccountID(c.Request.Context(), id, params.PerPage, offset)
	if err != nil {
		h.logger.Error("Failed to get transactions", "account_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	total, err := h.txLog.CountByAccountID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to count transactions", "account_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	list := TransactionListResponse{Transactions: make([]TransactionResponse, 0, len(txs))}
	for _, tx := range txs {
		list.Transactions = append(list.Transactions, mapTransactionToResponse(tx))
	}

	RespondWithPaginatedData(c, 200, list, params.Page, params.PerPage, int(total))
}
