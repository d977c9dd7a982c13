package handler

import (
	"time"

	"github.com/propmarket-credit-ledger/internal/domain/transaction"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// CreateAccountRequest represents a request to open a new credit account
type CreateAccountRequest struct {
	AccountID      string `json:"account_id" binding:"required,uuid"`
	InitialCredits int64  `json:"initial_credits" binding:"min=0"`
	InitialWallet  int64  `json:"initial_wallet" binding:"min=0"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID            string `json:"id"`
	CreditBalance int64  `json:"credit_balance"`
	WalletBalance int64  `json:"wallet_balance"`
	Version       int64  `json:"version"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// BalanceResponse represents an account's balances in API responses
type BalanceResponse struct {
	AccountID     string `json:"account_id"`
	CreditBalance int64  `json:"credit_balance"`
	WalletBalance int64  `json:"wallet_balance"`
	Version       int64  `json:"version"`
}

// SettlePurchaseRequest settles a credit-bundle purchase
type SettlePurchaseRequest struct {
	BuyerID      string `json:"buyer_id" binding:"required,uuid"`
	BundleID     string `json:"bundle_id" binding:"required"`
	TotalCredits int64  `json:"total_credits" binding:"required,gt=0"`
	PaymentRef   string `json:"payment_ref" binding:"required"`
}

// SettleOfferRequest settles a marketplace offer purchase
type SettleOfferRequest struct {
	BuyerID  string `json:"buyer_id" binding:"required,uuid"`
	SellerID string `json:"seller_id" binding:"required,uuid"`
	OfferID  string `json:"offer_id" binding:"required"`
	Cost     int64  `json:"cost" binding:"required,gt=0"`
}

// SettleCollaborationRequest settles a completed collaboration
type SettleCollaborationRequest struct {
	FromAgentID     string `json:"from_agent_id" binding:"required,uuid"`
	ToAgentID       string `json:"to_agent_id" binding:"required,uuid"`
	CollaborationID string `json:"collaboration_id" binding:"required"`
	Credits         int64  `json:"credits" binding:"required,gt=0"`
}

// SettleTerritoryRequest settles a territory claim
type SettleTerritoryRequest struct {
	AgentID        string `json:"agent_id" binding:"required,uuid"`
	ClaimAttemptID string `json:"claim_attempt_id" binding:"required"`
	Area           string `json:"area" binding:"required"`
	Cost           int64  `json:"cost" binding:"required,gt=0"`
}

// ReceiptResponse represents a settled operation in API responses
type ReceiptResponse struct {
	TransactionID  string            `json:"transaction_id"`
	Kind           string            `json:"kind"`
	Status         string            `json:"status"`
	Amount         int64             `json:"amount"`
	BalanceAfter   int64             `json:"balance_after"`
	ToBalanceAfter *int64            `json:"to_balance_after,omitempty"`
	Replayed       bool              `json:"replayed"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"created_at"`
	CompletedAt    string            `json:"completed_at,omitempty"`
}

// TransactionResponse represents a transaction log entry in API responses
type TransactionResponse struct {
	TransactionID string            `json:"transaction_id"`
	Kind          string            `json:"kind"`
	FromAccountID string            `json:"from_account_id,omitempty"`
	ToAccountID   string            `json:"to_account_id,omitempty"`
	Amount        int64             `json:"amount"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     string            `json:"created_at"`
	CompletedAt   string            `json:"completed_at,omitempty"`
}

// TransactionListResponse represents a list of transactions in API responses
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// mapReceiptToResponse maps an engine receipt to its API representation
func mapReceiptToResponse(receipt *ledger.Receipt, isTransfer bool) ReceiptResponse {
	tx := receipt.Transaction
	resp := ReceiptResponse{
		TransactionID: tx.TransactionID.String(),
		Kind:          string(tx.Kind),
		Status:        string(tx.Status),
		Amount:        tx.Amount,
		BalanceAfter:  receipt.BalanceAfter,
		Replayed:      receipt.Replayed,
		Metadata:      tx.Metadata,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if isTransfer {
		to := receipt.ToBalanceAfter
		resp.ToBalanceAfter = &to
	}
	if tx.CompletedAt != nil {
		resp.CompletedAt = tx.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// mapTransactionToResponse maps a transaction log entry to its API representation
func mapTransactionToResponse(tx *transaction.Transaction) TransactionResponse {
	resp := TransactionResponse{
		TransactionID: tx.TransactionID.String(),
		Kind:          string(tx.Kind),
		Amount:        tx.Amount,
		Status:        string(tx.Status),
		FailureReason: tx.FailureReason,
		Metadata:      tx.Metadata,
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.FromAccountID != nil {
		resp.FromAccountID = tx.FromAccountID.String()
	}
	if tx.ToAccountID != nil {
		resp.ToAccountID = tx.ToAccountID.String()
	}
	if tx.CompletedAt != nil {
		resp.CompletedAt = tx.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
