package transaction

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
)

func TestTransaction_SignedAmount(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	other := uuid.New()

	tx := &Transaction{
		TransactionID: uuid.New(),
		Kind:          shared.KindCreditTransfer,
		FromAccountID: &from,
		ToAccountID:   &to,
		Amount:        40,
		Status:        shared.TransactionStatusCompleted,
	}

	assert.Equal(t, int64(-40), tx.SignedAmount(from))
	assert.Equal(t, int64(40), tx.SignedAmount(to))
	assert.Equal(t, int64(0), tx.SignedAmount(other))

	tx.Status = shared.TransactionStatusFailed
	assert.Equal(t, int64(0), tx.SignedAmount(from), "failed transactions carry no delta")

	tx.Status = shared.TransactionStatusPending
	assert.Equal(t, int64(0), tx.SignedAmount(to), "pending transactions carry no delta")
}

func TestTransaction_Touches(t *testing.T) {
	from := uuid.New()
	to := uuid.New()

	credit := &Transaction{Kind: shared.KindCreditPurchase, ToAccountID: &to, Amount: 100}
	assert.True(t, credit.Touches(to))
	assert.False(t, credit.Touches(from))

	debit := &Transaction{Kind: shared.KindCreditSpend, FromAccountID: &from, Amount: 10}
	assert.True(t, debit.Touches(from))
	assert.False(t, debit.Touches(to))
}
