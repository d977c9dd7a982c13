package reconciler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propmarket-credit-ledger/internal/config"
	"github.com/propmarket-credit-ledger/internal/data/memory"
	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
)

func newTestReconciler(txLog transaction.Repository, ttl time.Duration, batchSize int) *Reconciler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReconciler(logger, txLog, &config.ReconcilerConfig{
		Interval:   10 * time.Millisecond,
		PendingTTL: ttl,
		BatchSize:  batchSize,
	})
}

func appendPendingAt(t *testing.T, txLog *memory.TransactionLog, key string, createdAt time.Time) uuid.UUID {
	t.Helper()
	to := uuid.New()
	tx := &transaction.Transaction{
		TransactionID:  uuid.New(),
		IdempotencyKey: key,
		Kind:           shared.KindCreditPurchase,
		ToAccountID:    &to,
		Amount:         10,
		CreatedAt:      createdAt,
	}
	require.NoError(t, txLog.Append(context.Background(), tx))
	return tx.TransactionID
}

func TestSweepOnce(t *testing.T) {
	t.Run("abandons pending transactions older than the TTL", func(t *testing.T) {
		txLog := memory.NewTransactionLog()
		staleID := appendPendingAt(t, txLog, "stale-1", time.Now().UTC().Add(-time.Hour))
		freshID := appendPendingAt(t, txLog, "fresh-1", time.Now().UTC())

		r := newTestReconciler(txLog, 10*time.Minute, 100)
		abandoned, err := r.SweepOnce(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, abandoned)

		stale, err := txLog.GetByTransactionID(context.Background(), staleID)
		require.NoError(t, err)
		assert.Equal(t, shared.TransactionStatusFailed, stale.Status)
		assert.Equal(t, string(shared.FailureReasonAbandoned), stale.FailureReason)
		require.NotNil(t, stale.CompletedAt)

		fresh, err := txLog.GetByTransactionID(context.Background(), freshID)
		require.NoError(t, err)
		assert.Equal(t, shared.TransactionStatusPending, fresh.Status)
	})

	t.Run("abandoning frees the idempotency key for a retry", func(t *testing.T) {
		txLog := memory.NewTransactionLog()
		appendPendingAt(t, txLog, "stuck-key", time.Now().UTC().Add(-time.Hour))

		r := newTestReconciler(txLog, 10*time.Minute, 100)
		abandoned, err := r.SweepOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, abandoned)

		// The same key appends cleanly now that the old attempt is failed
		retryID := appendPendingAt(t, txLog, "stuck-key", time.Now().UTC())
		retry, err := txLog.GetByTransactionID(context.Background(), retryID)
		require.NoError(t, err)
		assert.Equal(t, shared.TransactionStatusPending, retry.Status)
	})

	t.Run("honors the batch size", func(t *testing.T) {
		txLog := memory.NewTransactionLog()
		for i := 0; i < 5; i++ {
			appendPendingAt(t, txLog, "", time.Now().UTC().Add(-time.Hour))
		}

		r := newTestReconciler(txLog, 10*time.Minute, 2)

		abandoned, err := r.SweepOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, abandoned)

		abandoned, err = r.SweepOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, abandoned)

		abandoned, err = r.SweepOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, abandoned)
	})

	t.Run("does nothing when all pending transactions are fresh", func(t *testing.T) {
		txLog := memory.NewTransactionLog()
		appendPendingAt(t, txLog, "fresh-2", time.Now().UTC())

		r := newTestReconciler(txLog, 10*time.Minute, 100)
		abandoned, err := r.SweepOnce(context.Background())

		require.NoError(t, err)
		assert.Zero(t, abandoned)
	})

	t.Run("never touches terminal transactions", func(t *testing.T) {
		txLog := memory.NewTransactionLog()
		id := appendPendingAt(t, txLog, "done-1", time.Now().UTC().Add(-time.Hour))
		_, err := txLog.Finalize(context.Background(), id, shared.TransactionStatusCompleted, "", nil)
		require.NoError(t, err)

		r := newTestReconciler(txLog, 10*time.Minute, 100)
		abandoned, err := r.SweepOnce(context.Background())

		require.NoError(t, err)
		assert.Zero(t, abandoned)

		tx, err := txLog.GetByTransactionID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, shared.TransactionStatusCompleted, tx.Status)
	})
}

func TestRun(t *testing.T) {
	t.Run("sweeps on the interval until canceled", func(t *testing.T) {
		txLog := memory.NewTransactionLog()
		staleID := appendPendingAt(t, txLog, "run-stale", time.Now().UTC().Add(-time.Hour))

		r := newTestReconciler(txLog, 10*time.Minute, 100)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			r.Run(ctx)
			close(done)
		}()

		assert.Eventually(t, func() bool {
			tx, err := txLog.GetByTransactionID(context.Background(), staleID)
			return err == nil && tx.Status == shared.TransactionStatusFailed
		}, time.Second, 5*time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("reconciler did not stop after context cancellation")
		}
	})
}
