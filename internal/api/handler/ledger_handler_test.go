package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
)

func TestCreateAccount(t *testing.T) {
	t.Run("creates an account with opening balances", func(t *testing.T) {
		h := newTestHarness(t)
		id := uuid.New()

		w, env := h.do(t, http.MethodPost, "/api/v1/accounts", gin.H{
			"account_id":      id.String(),
			"initial_credits": 100,
			"initial_wallet":  2500,
		})

		require.Equal(t, http.StatusCreated, w.Code)
		var resp AccountResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, id.String(), resp.ID)
		assert.Equal(t, int64(100), resp.CreditBalance)
		assert.Equal(t, int64(2500), resp.WalletBalance)
		assert.Equal(t, int64(1), resp.Version)
	})

	t.Run("defaults opening balances to zero", func(t *testing.T) {
		h := newTestHarness(t)

		w, env := h.do(t, http.MethodPost, "/api/v1/accounts", gin.H{
			"account_id": uuid.New().String(),
		})

		require.Equal(t, http.StatusCreated, w.Code)
		var resp AccountResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Zero(t, resp.CreditBalance)
		assert.Zero(t, resp.WalletBalance)
	})

	t.Run("returns 409 for a duplicate account", func(t *testing.T) {
		h := newTestHarness(t)
		id := h.seedAccount(t, 0, 0)

		w, env := h.do(t, http.MethodPost, "/api/v1/accounts", gin.H{
			"account_id": id.String(),
		})

		assert.Equal(t, http.StatusConflict, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "ACCOUNT_EXISTS", env.Error.Code)
	})

	t.Run("rejects negative opening balances", func(t *testing.T) {
		h := newTestHarness(t)

		w, _ := h.do(t, http.MethodPost, "/api/v1/accounts", gin.H{
			"account_id":      uuid.New().String(),
			"initial_credits": -1,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects a malformed account ID", func(t *testing.T) {
		h := newTestHarness(t)

		w, _ := h.do(t, http.MethodPost, "/api/v1/accounts", gin.H{
			"account_id": "not-a-uuid",
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetBalance(t *testing.T) {
	t.Run("returns the current balances", func(t *testing.T) {
		h := newTestHarness(t)
		id := h.seedAccount(t, 75, 1200)

		w, env := h.do(t, http.MethodGet, "/api/v1/accounts/"+id.String()+"/balance", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp BalanceResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, id.String(), resp.AccountID)
		assert.Equal(t, int64(75), resp.CreditBalance)
		assert.Equal(t, int64(1200), resp.WalletBalance)
		assert.Equal(t, int64(1), resp.Version)
	})

	t.Run("returns 404 for an unknown account", func(t *testing.T) {
		h := newTestHarness(t)

		w, env := h.do(t, http.MethodGet, "/api/v1/accounts/"+uuid.New().String()+"/balance", nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "NOT_FOUND", env.Error.Code)
	})

	t.Run("rejects a malformed account ID", func(t *testing.T) {
		h := newTestHarness(t)

		w, _ := h.do(t, http.MethodGet, "/api/v1/accounts/nope/balance", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetTransaction(t *testing.T) {
	t.Run("returns a settled transaction", func(t *testing.T) {
		h := newTestHarness(t)
		id := h.seedAccount(t, 0, 0)

		receipt, err := h.engine.Credit(context.Background(), id, 40, shared.KindCreditPurchase, "pay_tx_1", nil)
		require.NoError(t, err)

		w, env := h.do(t, http.MethodGet, "/api/v1/transactions/"+receipt.Transaction.TransactionID.String(), nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp TransactionResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Equal(t, receipt.Transaction.TransactionID.String(), resp.TransactionID)
		assert.Equal(t, "credit_purchase", resp.Kind)
		assert.Equal(t, "COMPLETED", resp.Status)
		assert.Equal(t, id.String(), resp.ToAccountID)
		assert.NotEmpty(t, resp.CompletedAt)
	})

	t.Run("returns 404 for an unknown transaction", func(t *testing.T) {
		h := newTestHarness(t)

		w, _ := h.do(t, http.MethodGet, "/api/v1/transactions/"+uuid.New().String(), nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestGetTransactionsByAccount(t *testing.T) {
	t.Run("paginates history newest first", func(t *testing.T) {
		h := newTestHarness(t)
		id := h.seedAccount(t, 0, 0)
		for i := 0; i < 5; i++ {
			_, err := h.engine.Credit(context.Background(), id, 10, shared.KindCreditPurchase, fmt.Sprintf("pay_hist_%d", i), nil)
			require.NoError(t, err)
		}

		w, env := h.do(t, http.MethodGet, "/api/v1/accounts/"+id.String()+"/transactions?page=1&per_page=2", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp TransactionListResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Len(t, resp.Transactions, 2)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 1, env.Meta.Page)
		assert.Equal(t, 2, env.Meta.PerPage)
		assert.Equal(t, 5, env.Meta.TotalItems)
		assert.Equal(t, 3, env.Meta.TotalPages)
	})

	t.Run("applies pagination defaults", func(t *testing.T) {
		h := newTestHarness(t)
		id := h.seedAccount(t, 0, 0)
		_, err := h.engine.Credit(context.Background(), id, 10, shared.KindCreditPurchase, "pay_default", nil)
		require.NoError(t, err)

		w, env := h.do(t, http.MethodGet, "/api/v1/accounts/"+id.String()+"/transactions", nil)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, env.Meta)
		assert.Equal(t, 1, env.Meta.Page)
		assert.Equal(t, 10, env.Meta.PerPage)
	})

	t.Run("rejects an out-of-range page size", func(t *testing.T) {
		h := newTestHarness(t)
		id := h.seedAccount(t, 0, 0)

		w, _ := h.do(t, http.MethodGet, "/api/v1/accounts/"+id.String()+"/transactions?per_page=500", nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns an empty page for an account without history", func(t *testing.T) {
		h := newTestHarness(t)
		id := h.seedAccount(t, 0, 0)

		w, env := h.do(t, http.MethodGet, "/api/v1/accounts/"+id.String()+"/transactions", nil)

		require.Equal(t, http.StatusOK, w.Code)
		var resp TransactionListResponse
		require.NoError(t, json.Unmarshal(env.Data, &resp))
		assert.Empty(t, resp.Transactions)
	})
}
