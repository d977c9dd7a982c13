package reward

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/propmarket-credit-ledger/internal/domain/account"
	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// MockSettler mocks the Settler interface
type MockSettler struct {
	mock.Mock
}

func (m *MockSettler) SettleReward(ctx context.Context, accountID uuid.UUID, rewardEventID string, credits int64, source string) (*ledger.Receipt, error) {
	args := m.Called(ctx, accountID, rewardEventID, credits, source)
	if receipt, ok := args.Get(0).(*ledger.Receipt); ok {
		return receipt, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDLQ mocks the DeadLetterPublisher interface
type MockDLQ struct {
	mock.Mock
}

func (m *MockDLQ) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	args := m.Called(ctx, key, originalMessageValue, reason)
	return args.Error(0)
}

func (m *MockDLQ) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, settler Settler, dlq *MockDLQ) *EventHandler {
	t.Helper()
	pool, err := NewWorkerPool(testLogger(), settler, WorkerPoolConfig{Size: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Shutdown)

	if dlq == nil {
		return NewEventHandler(testLogger(), pool, nil)
	}
	return NewEventHandler(testLogger(), pool, dlq)
}

func rewardMessage(t *testing.T, event shared.RewardEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func stubReceipt(eventID string) *ledger.Receipt {
	now := time.Now().UTC()
	return &ledger.Receipt{
		Transaction: &transaction.Transaction{
			TransactionID:  uuid.New(),
			IdempotencyKey: eventID,
			Kind:           shared.KindRewardGrant,
			Status:         shared.TransactionStatusCompleted,
			CreatedAt:      now,
			CompletedAt:    &now,
		},
		BalanceAfter: 25,
	}
}

func TestHandleMessage(t *testing.T) {
	accountID := uuid.New()

	t.Run("settles a reward and commits", func(t *testing.T) {
		settler := new(MockSettler)
		settler.On("SettleReward", mock.Anything, accountID, "evt-1", int64(25), "badge").
			Return(stubReceipt("evt-1"), nil).Once()
		h := newTestHandler(t, settler, nil)

		msg := rewardMessage(t, shared.RewardEvent{
			EventID:   "evt-1",
			AccountID: accountID,
			Credits:   25,
			Source:    "badge",
			AwardedAt: time.Now().UTC(),
		})

		err := h.HandleMessage(context.Background(), []byte(accountID.String()), msg)
		assert.NoError(t, err)
		settler.AssertExpectations(t)
	})

	t.Run("dead-letters an unparseable message and commits", func(t *testing.T) {
		settler := new(MockSettler)
		dlq := new(MockDLQ)
		dlq.On("PublishToDLQ", mock.Anything, "key-1", []byte("{not json"), mock.MatchedBy(func(reason string) bool {
			return reason != ""
		})).Return(nil).Once()
		h := newTestHandler(t, settler, dlq)

		err := h.HandleMessage(context.Background(), []byte("key-1"), []byte("{not json"))

		assert.NoError(t, err)
		dlq.AssertExpectations(t)
		settler.AssertNotCalled(t, "SettleReward")
	})

	t.Run("returns the error for a poison message when no DLQ is configured", func(t *testing.T) {
		settler := new(MockSettler)
		h := newTestHandler(t, settler, nil)

		err := h.HandleMessage(context.Background(), []byte("key-1"), []byte("{not json"))

		assert.Error(t, err)
	})

	t.Run("dead-letters an event without an event ID", func(t *testing.T) {
		settler := new(MockSettler)
		dlq := new(MockDLQ)
		dlq.On("PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, "missing event_id").
			Return(nil).Once()
		h := newTestHandler(t, settler, dlq)

		msg := rewardMessage(t, shared.RewardEvent{AccountID: accountID, Credits: 5, Source: "quest"})
		err := h.HandleMessage(context.Background(), nil, msg)

		assert.NoError(t, err)
		dlq.AssertExpectations(t)
		settler.AssertNotCalled(t, "SettleReward")
	})

	t.Run("dead-letters a permanent business rejection", func(t *testing.T) {
		settler := new(MockSettler)
		settler.On("SettleReward", mock.Anything, accountID, "evt-2", int64(5), "quest").
			Return(nil, account.ErrAccountNotFound{AccountID: accountID}).Once()
		dlq := new(MockDLQ)
		dlq.On("PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(reason string) bool {
			return reason != ""
		})).Return(nil).Once()
		h := newTestHandler(t, settler, dlq)

		msg := rewardMessage(t, shared.RewardEvent{
			EventID:   "evt-2",
			AccountID: accountID,
			Credits:   5,
			Source:    "quest",
		})
		err := h.HandleMessage(context.Background(), nil, msg)

		assert.NoError(t, err)
		settler.AssertExpectations(t)
		dlq.AssertExpectations(t)
	})

	t.Run("returns transient errors for redelivery", func(t *testing.T) {
		settler := new(MockSettler)
		settler.On("SettleReward", mock.Anything, accountID, "evt-3", int64(5), "quest").
			Return(nil, errors.New("mongo: connection reset")).Once()
		dlq := new(MockDLQ)
		h := newTestHandler(t, settler, dlq)

		msg := rewardMessage(t, shared.RewardEvent{
			EventID:   "evt-3",
			AccountID: accountID,
			Credits:   5,
			Source:    "quest",
		})
		err := h.HandleMessage(context.Background(), nil, msg)

		assert.Error(t, err)
		dlq.AssertNotCalled(t, "PublishToDLQ")
	})

	t.Run("leaves an in-flight duplicate for redelivery", func(t *testing.T) {
		settler := new(MockSettler)
		settler.On("SettleReward", mock.Anything, accountID, "evt-4", int64(5), "quest").
			Return(nil, ledger.ErrDuplicateInProgress{IdempotencyKey: "evt-4", Kind: shared.KindRewardGrant}).Once()
		dlq := new(MockDLQ)
		h := newTestHandler(t, settler, dlq)

		msg := rewardMessage(t, shared.RewardEvent{
			EventID:   "evt-4",
			AccountID: accountID,
			Credits:   5,
			Source:    "quest",
		})
		err := h.HandleMessage(context.Background(), nil, msg)

		assert.Error(t, err)
		dlq.AssertNotCalled(t, "PublishToDLQ")
	})

	t.Run("returns the original error when the DLQ publish fails", func(t *testing.T) {
		settler := new(MockSettler)
		dlq := new(MockDLQ)
		dlq.On("PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("kafka down")).Once()
		h := newTestHandler(t, settler, dlq)

		err := h.HandleMessage(context.Background(), nil, []byte("{not json"))

		assert.Error(t, err)
		dlq.AssertExpectations(t)
	})
}

func TestWorkerPool(t *testing.T) {
	accountID := uuid.New()

	t.Run("propagates the settlement result", func(t *testing.T) {
		settler := new(MockSettler)
		settler.On("SettleReward", mock.Anything, accountID, "evt-pool", int64(10), "badge").
			Return(stubReceipt("evt-pool"), nil).Once()

		pool, err := NewWorkerPool(testLogger(), settler, WorkerPoolConfig{Size: 1})
		require.NoError(t, err)
		defer pool.Shutdown()

		err = pool.Settle(context.Background(), &shared.RewardEvent{
			EventID:   "evt-pool",
			AccountID: accountID,
			Credits:   10,
			Source:    "badge",
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, pool.Capacity())
		settler.AssertExpectations(t)
	})

	t.Run("propagates settlement errors", func(t *testing.T) {
		settler := new(MockSettler)
		wantErr := errors.New("store offline")
		settler.On("SettleReward", mock.Anything, accountID, "evt-err", int64(10), "badge").
			Return(nil, wantErr).Once()

		pool, err := NewWorkerPool(testLogger(), settler, WorkerPoolConfig{Size: 1})
		require.NoError(t, err)
		defer pool.Shutdown()

		err = pool.Settle(context.Background(), &shared.RewardEvent{
			EventID:   "evt-err",
			AccountID: accountID,
			Credits:   10,
			Source:    "badge",
		})

		assert.ErrorIs(t, err, wantErr)
	})
}
