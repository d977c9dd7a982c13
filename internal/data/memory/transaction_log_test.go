package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
)

func pendingTx(key string, kind shared.TransactionKind, to uuid.UUID, amount int64) *transaction.Transaction {
	return &transaction.Transaction{
		TransactionID:  uuid.New(),
		IdempotencyKey: key,
		Kind:           kind,
		ToAccountID:    &to,
		Amount:         amount,
	}
}

func TestTransactionLog_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("stores pending with a creation time", func(t *testing.T) {
		log := NewTransactionLog()
		tx := pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)

		require.NoError(t, log.Append(ctx, tx))
		assert.Equal(t, shared.TransactionStatusPending, tx.Status)
		assert.False(t, tx.CreatedAt.IsZero())
	})

	t.Run("live duplicate key is rejected", func(t *testing.T) {
		log := NewTransactionLog()
		require.NoError(t, log.Append(ctx, pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)))

		err := log.Append(ctx, pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10))
		assert.ErrorIs(t, err, transaction.ErrDuplicateKey{})
	})

	t.Run("same key under a different kind is independent", func(t *testing.T) {
		log := NewTransactionLog()
		require.NoError(t, log.Append(ctx, pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)))
		assert.NoError(t, log.Append(ctx, pendingTx("k1", shared.KindRewardGrant, uuid.New(), 10)))
	})

	t.Run("failed attempt does not block a retry", func(t *testing.T) {
		log := NewTransactionLog()
		first := pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)
		require.NoError(t, log.Append(ctx, first))
		_, err := log.Finalize(ctx, first.TransactionID, shared.TransactionStatusFailed, "STORE_UNAVAILABLE", nil)
		require.NoError(t, err)

		assert.NoError(t, log.Append(ctx, pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)))
	})

	t.Run("keyless transactions never collide", func(t *testing.T) {
		log := NewTransactionLog()
		require.NoError(t, log.Append(ctx, pendingTx("", shared.KindCreditSpend, uuid.New(), 5)))
		assert.NoError(t, log.Append(ctx, pendingTx("", shared.KindCreditSpend, uuid.New(), 5)))
	})
}

func TestTransactionLog_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("completes once and merges metadata", func(t *testing.T) {
		log := NewTransactionLog()
		tx := pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)
		tx.Metadata = map[string]string{"bundle_id": "starter"}
		require.NoError(t, log.Append(ctx, tx))

		done, err := log.Finalize(ctx, tx.TransactionID, shared.TransactionStatusCompleted, "", map[string]string{
			transaction.MetaBalanceAfter: "110",
		})
		require.NoError(t, err)
		assert.Equal(t, shared.TransactionStatusCompleted, done.Status)
		assert.Equal(t, "starter", done.Metadata["bundle_id"])
		assert.Equal(t, "110", done.Metadata[transaction.MetaBalanceAfter])
		require.NotNil(t, done.CompletedAt)
	})

	t.Run("terminal records are immutable", func(t *testing.T) {
		log := NewTransactionLog()
		tx := pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)
		require.NoError(t, log.Append(ctx, tx))
		_, err := log.Finalize(ctx, tx.TransactionID, shared.TransactionStatusCompleted, "", nil)
		require.NoError(t, err)

		again, err := log.Finalize(ctx, tx.TransactionID, shared.TransactionStatusFailed, "UNKNOWN_ERROR", nil)
		require.NoError(t, err)
		assert.Equal(t, shared.TransactionStatusCompleted, again.Status)
		assert.Empty(t, again.FailureReason)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		log := NewTransactionLog()
		_, err := log.Finalize(ctx, uuid.New(), shared.TransactionStatusCompleted, "", nil)
		assert.ErrorIs(t, err, transaction.ErrNotFound{})
	})
}

func TestTransactionLog_FindByIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	log := NewTransactionLog()

	first := pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)
	require.NoError(t, log.Append(ctx, first))
	_, err := log.Finalize(ctx, first.TransactionID, shared.TransactionStatusFailed, "STORE_UNAVAILABLE", nil)
	require.NoError(t, err)

	retry := pendingTx("k1", shared.KindCreditPurchase, uuid.New(), 10)
	require.NoError(t, log.Append(ctx, retry))

	// The retry shadows the failed attempt
	found, err := log.FindByIdempotencyKey(ctx, "k1", shared.KindCreditPurchase)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, retry.TransactionID, found.TransactionID)

	none, err := log.FindByIdempotencyKey(ctx, "missing", shared.KindCreditPurchase)
	require.NoError(t, err)
	assert.Nil(t, none)

	blank, err := log.FindByIdempotencyKey(ctx, "", shared.KindCreditPurchase)
	require.NoError(t, err)
	assert.Nil(t, blank)
}

func TestTransactionLog_GetByAccountID(t *testing.T) {
	ctx := context.Background()
	log := NewTransactionLog()
	accID := uuid.New()
	other := uuid.New()

	for i := 0; i < 5; i++ {
		tx := pendingTx("", shared.KindCreditPurchase, accID, int64(i+1))
		tx.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, log.Append(ctx, tx))
	}
	require.NoError(t, log.Append(ctx, pendingTx("", shared.KindCreditPurchase, other, 99)))

	page, err := log.GetByAccountID(ctx, accID, 3, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(5), page[0].Amount, "newest first")

	rest, err := log.GetByAccountID(ctx, accID, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)

	beyond, err := log.GetByAccountID(ctx, accID, 3, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	count, err := log.CountByAccountID(ctx, accID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestTransactionLog_FindStalePending(t *testing.T) {
	ctx := context.Background()
	log := NewTransactionLog()

	old := pendingTx("", shared.KindCreditSpend, uuid.New(), 1)
	old.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, log.Append(ctx, old))

	older := pendingTx("", shared.KindCreditSpend, uuid.New(), 2)
	older.CreatedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, log.Append(ctx, older))

	fresh := pendingTx("", shared.KindCreditSpend, uuid.New(), 3)
	require.NoError(t, log.Append(ctx, fresh))

	done := pendingTx("", shared.KindCreditSpend, uuid.New(), 4)
	done.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, log.Append(ctx, done))
	_, err := log.Finalize(ctx, done.TransactionID, shared.TransactionStatusCompleted, "", nil)
	require.NoError(t, err)

	stale, err := log.FindStalePending(ctx, time.Now().UTC().Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, older.TransactionID, stale[0].TransactionID, "oldest first")
	assert.Equal(t, old.TransactionID, stale[1].TransactionID)

	limited, err := log.FindStalePending(ctx, time.Now().UTC().Add(-time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
