// Package ledger implements the transaction engine: atomic, idempotent balance
// mutations recorded in the append-only transaction log. Every operation
// follows the same shape: replay check, append a pending transaction, apply the
// balance change with optimistic-concurrency retries, finalize the transaction.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/config"
	"github.com/propmarket-credit-ledger/internal/domain/account"
	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
	"github.com/propmarket-credit-ledger/internal/platform/metrics"
)

// Balance is a point-in-time view of one account
type Balance struct {
	AccountID     uuid.UUID `json:"account_id"`
	CreditBalance int64     `json:"credit_balance"`
	WalletBalance int64     `json:"wallet_balance"`
	Version       int64     `json:"version"`
}

// Receipt is the result of a settled engine operation. BalanceAfter is the
// affected balance of the primary account (recipient for credits, payer for
// debits and transfers); ToBalanceAfter is set for transfers only. Replayed
// receipts are reconstructed from a previously completed transaction.
type Receipt struct {
	Transaction    *transaction.Transaction `json:"transaction"`
	BalanceAfter   int64                    `json:"balance_after"`
	ToBalanceAfter int64                    `json:"to_balance_after,omitempty"`
	Replayed       bool                     `json:"replayed"`
}

// Engine is the single write path for account balances
type Engine interface {
	// Credit adds amount to an account. Valid kinds: credit_purchase,
	// reward_grant, wallet_load.
	Credit(ctx context.Context, accountID uuid.UUID, amount int64, kind shared.TransactionKind, idempotencyKey string, metadata map[string]string) (*Receipt, error)
	// Debit removes amount from an account, failing if the balance would go
	// negative. Valid kinds: credit_spend, wallet_debit.
	Debit(ctx context.Context, accountID uuid.UUID, amount int64, kind shared.TransactionKind, idempotencyKey string, metadata map[string]string) (*Receipt, error)
	// Transfer moves amount between two accounts as one logical transaction.
	// A failed credit leg triggers a compensating credit on the payer.
	Transfer(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount int64, idempotencyKey string, metadata map[string]string) (*Receipt, error)
	// GetBalance reads the current balances of an account
	GetBalance(ctx context.Context, accountID uuid.UUID) (*Balance, error)
}

type engine struct {
	accounts account.Repository
	txLog    transaction.Repository
	logger   *slog.Logger

	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
}

// NewEngine creates the ledger engine on top of an account store and
// transaction log.
func NewEngine(logger *slog.Logger, accounts account.Repository, txLog transaction.Repository, cfg *config.EngineConfig) Engine {
	return &engine{
		accounts:    accounts,
		txLog:       txLog,
		logger:      logger,
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffMax:  cfg.BackoffMax,
	}
}

func (e *engine) Credit(ctx context.Context, accountID uuid.UUID, amount int64, kind shared.TransactionKind, idempotencyKey string, metadata map[string]string) (*Receipt, error) {
	defer e.observe("credit")()

	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}
	if kind != shared.KindCreditPurchase && kind != shared.KindRewardGrant && kind != shared.KindWalletLoad {
		return nil, ErrUnsupportedKind{Kind: kind, Operation: "credit"}
	}

	if receipt, err := e.replayOrReject(ctx, idempotencyKey, kind); receipt != nil || err != nil {
		return receipt, err
	}

	tx := &transaction.Transaction{
		TransactionID:  uuid.New(),
		IdempotencyKey: idempotencyKey,
		Kind:           kind,
		ToAccountID:    &accountID,
		Amount:         amount,
		Metadata:       cloneMetadata(metadata),
		CreatedAt:      time.Now().UTC(),
	}
	if receipt, err := e.appendPending(ctx, tx); receipt != nil || err != nil {
		return receipt, err
	}

	mutate := func(acc *account.Account) error {
		if kind == shared.KindWalletLoad {
			return acc.LoadWallet(amount)
		}
		return acc.AddCredits(amount)
	}
	updated, err := e.applyWithRetry(ctx, accountID, mutate)
	if err != nil {
		e.finalizeFailed(ctx, tx, err, nil)
		return nil, err
	}

	balanceAfter := affectedBalance(updated, kind)
	return e.finalizeCompleted(ctx, tx, map[string]string{
		transaction.MetaBalanceAfter: strconv.FormatInt(balanceAfter, 10),
	}, balanceAfter, 0)
}

func (e *engine) Debit(ctx context.Context, accountID uuid.UUID, amount int64, kind shared.TransactionKind, idempotencyKey string, metadata map[string]string) (*Receipt, error) {
	defer e.observe("debit")()

	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}
	if kind != shared.KindCreditSpend && kind != shared.KindWalletDebit {
		return nil, ErrUnsupportedKind{Kind: kind, Operation: "debit"}
	}

	if receipt, err := e.replayOrReject(ctx, idempotencyKey, kind); receipt != nil || err != nil {
		return receipt, err
	}

	tx := &transaction.Transaction{
		TransactionID:  uuid.New(),
		IdempotencyKey: idempotencyKey,
		Kind:           kind,
		FromAccountID:  &accountID,
		Amount:         amount,
		Metadata:       cloneMetadata(metadata),
		CreatedAt:      time.Now().UTC(),
	}
	if receipt, err := e.appendPending(ctx, tx); receipt != nil || err != nil {
		return receipt, err
	}

	mutate := func(acc *account.Account) error {
		if kind == shared.KindWalletDebit {
			return acc.DebitWallet(amount)
		}
		return acc.SpendCredits(amount)
	}
	updated, err := e.applyWithRetry(ctx, accountID, mutate)
	if err != nil {
		e.finalizeFailed(ctx, tx, err, nil)
		return nil, err
	}

	balanceAfter := affectedBalance(updated, kind)
	return e.finalizeCompleted(ctx, tx, map[string]string{
		transaction.MetaBalanceAfter: strconv.FormatInt(balanceAfter, 10),
	}, balanceAfter, 0)
}

func (e *engine) Transfer(ctx context.Context, fromAccountID, toAccountID uuid.UUID, amount int64, idempotencyKey string, metadata map[string]string) (*Receipt, error) {
	defer e.observe("transfer")()

	if amount <= 0 {
		return nil, account.ErrInvalidAmount
	}
	if fromAccountID == toAccountID {
		return nil, ErrSameAccount
	}
	kind := shared.KindCreditTransfer

	if receipt, err := e.replayOrReject(ctx, idempotencyKey, kind); receipt != nil || err != nil {
		return receipt, err
	}

	tx := &transaction.Transaction{
		TransactionID:  uuid.New(),
		IdempotencyKey: idempotencyKey,
		Kind:           kind,
		FromAccountID:  &fromAccountID,
		ToAccountID:    &toAccountID,
		Amount:         amount,
		Metadata:       cloneMetadata(metadata),
		CreatedAt:      time.Now().UTC(),
	}
	if receipt, err := e.appendPending(ctx, tx); receipt != nil || err != nil {
		return receipt, err
	}

	// Recipient must exist before the payer is debited, otherwise every
	// transfer to a bad account costs a debit plus a reversal.
	if _, err := e.accounts.GetByID(ctx, toAccountID); err != nil {
		err = e.classify("transfer recipient lookup", err)
		e.finalizeFailed(ctx, tx, err, nil)
		return nil, err
	}

	debited, err := e.applyWithRetry(ctx, fromAccountID, func(acc *account.Account) error {
		return acc.SpendCredits(amount)
	})
	if err != nil {
		e.finalizeFailed(ctx, tx, err, nil)
		return nil, err
	}

	credited, err := e.applyWithRetry(ctx, toAccountID, func(acc *account.Account) error {
		return acc.AddCredits(amount)
	})
	if err != nil {
		reversal := e.reverseDebit(ctx, tx, fromAccountID, amount)
		e.finalizeFailed(ctx, tx, err, map[string]string{transaction.MetaReversal: reversal})
		return nil, err
	}

	fromAfter := debited.CreditBalance
	toAfter := credited.CreditBalance
	return e.finalizeCompleted(ctx, tx, map[string]string{
		transaction.MetaFromBalanceAfter: strconv.FormatInt(fromAfter, 10),
		transaction.MetaToBalanceAfter:   strconv.FormatInt(toAfter, 10),
	}, fromAfter, toAfter)
}

func (e *engine) GetBalance(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	acc, err := e.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, e.classify("balance lookup", err)
	}
	return &Balance{
		AccountID:     acc.ID,
		CreditBalance: acc.CreditBalance,
		WalletBalance: acc.WalletBalance,
		Version:       acc.Version,
	}, nil
}

// replayOrReject resolves the idempotency key before any work happens.
// A completed transaction answers the request from its recorded result, a
// pending one rejects it, a failed one allows a fresh attempt.
func (e *engine) replayOrReject(ctx context.Context, key string, kind shared.TransactionKind) (*Receipt, error) {
	if key == "" {
		return nil, nil
	}
	existing, err := e.txLog.FindByIdempotencyKey(ctx, key, kind)
	if err != nil {
		return nil, &StoreUnavailableError{Op: "idempotency lookup", Err: err}
	}
	if existing == nil {
		return nil, nil
	}
	switch existing.Status {
	case shared.TransactionStatusCompleted:
		metrics.IdempotentReplaysTotal.Inc()
		e.logger.Info("replaying completed transaction",
			"transaction_id", existing.TransactionID,
			"idempotency_key", key,
			"kind", kind)
		return replayReceipt(existing), nil
	case shared.TransactionStatusPending:
		return nil, ErrDuplicateInProgress{IdempotencyKey: key, Kind: kind}
	default:
		return nil, nil
	}
}

// appendPending records the transaction before any balance is touched. A
// duplicate-key rejection means a concurrent request won the race; the lookup
// is re-run so the loser replays or backs off instead of double-applying.
func (e *engine) appendPending(ctx context.Context, tx *transaction.Transaction) (*Receipt, error) {
	err := e.txLog.Append(ctx, tx)
	if err == nil {
		return nil, nil
	}
	if errors.Is(err, transaction.ErrDuplicateKey{}) {
		receipt, lookupErr := e.replayOrReject(ctx, tx.IdempotencyKey, tx.Kind)
		if receipt != nil || lookupErr != nil {
			return receipt, lookupErr
		}
		return nil, ErrDuplicateInProgress{IdempotencyKey: tx.IdempotencyKey, Kind: tx.Kind}
	}
	return nil, &StoreUnavailableError{Op: "append transaction", Err: err}
}

// applyWithRetry runs the read-mutate-swap loop until the swap wins, a
// business rule rejects the mutation, or the attempt budget runs out.
func (e *engine) applyWithRetry(ctx context.Context, accountID uuid.UUID, mutate account.MutateFunc) (*account.Account, error) {
	return e.applyWithBudget(ctx, accountID, mutate, e.maxAttempts)
}

func (e *engine) applyWithBudget(ctx context.Context, accountID uuid.UUID, mutate account.MutateFunc, attempts int) (*account.Account, error) {
	for attempt := 0; attempt < attempts; attempt++ {
		current, err := e.accounts.GetByID(ctx, accountID)
		if err != nil {
			return nil, e.classify("account read", err)
		}

		updated, err := e.accounts.CompareAndSwap(ctx, accountID, current.Version, mutate)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, account.ErrVersionConflict{}) {
			metrics.VersionConflictsTotal.Inc()
			if sleepErr := e.backoff(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, e.classify("account swap", err)
	}
	return nil, ErrRetriesExhausted{AccountID: accountID}
}

// reverseDebit issues the compensating credit after a transfer's credit leg
// failed. It gets double the usual attempt budget; if it still cannot land the
// reversal is recorded as pending for manual follow-up.
func (e *engine) reverseDebit(ctx context.Context, tx *transaction.Transaction, accountID uuid.UUID, amount int64) string {
	_, err := e.applyWithBudget(ctx, accountID, func(acc *account.Account) error {
		return acc.AddCredits(amount)
	}, 2*e.maxAttempts)
	if err != nil {
		metrics.ReversalsTotal.WithLabelValues("pending").Inc()
		e.logger.Error("transfer reversal did not land, payer balance is short",
			"transaction_id", tx.TransactionID,
			"account_id", accountID,
			"amount", amount,
			"error", err)
		return transaction.ReversalPending
	}
	metrics.ReversalsTotal.WithLabelValues("completed").Inc()
	e.logger.Warn("transfer reversed after credit leg failure",
		"transaction_id", tx.TransactionID,
		"account_id", accountID,
		"amount", amount)
	return transaction.ReversalCompleted
}

func (e *engine) finalizeCompleted(ctx context.Context, tx *transaction.Transaction, meta map[string]string, balanceAfter, toBalanceAfter int64) (*Receipt, error) {
	finalized, err := e.txLog.Finalize(ctx, tx.TransactionID, shared.TransactionStatusCompleted, "", meta)
	if err != nil {
		// The balance change landed but the log still says pending. The
		// reconciler will flag the transaction; surfacing the store error
		// here keeps the caller from treating the result as settled.
		e.logger.Error("balance applied but finalization failed",
			"transaction_id", tx.TransactionID,
			"kind", tx.Kind,
			"error", err)
		return nil, &StoreUnavailableError{Op: "finalize transaction", Err: err}
	}
	metrics.TransactionsTotal.WithLabelValues(string(tx.Kind), string(shared.TransactionStatusCompleted)).Inc()
	e.logger.Info("transaction completed",
		"transaction_id", finalized.TransactionID,
		"kind", finalized.Kind,
		"amount", finalized.Amount)
	return &Receipt{
		Transaction:    finalized,
		BalanceAfter:   balanceAfter,
		ToBalanceAfter: toBalanceAfter,
	}, nil
}

func (e *engine) finalizeFailed(ctx context.Context, tx *transaction.Transaction, cause error, extraMeta map[string]string) {
	reason := string(failureReasonFor(cause))
	if _, err := e.txLog.Finalize(ctx, tx.TransactionID, shared.TransactionStatusFailed, reason, extraMeta); err != nil {
		e.logger.Error("could not finalize transaction as failed",
			"transaction_id", tx.TransactionID,
			"reason", reason,
			"error", err)
		return
	}
	metrics.TransactionsTotal.WithLabelValues(string(tx.Kind), string(shared.TransactionStatusFailed)).Inc()
	e.logger.Info("transaction failed",
		"transaction_id", tx.TransactionID,
		"kind", tx.Kind,
		"reason", reason)
}

// classify passes business errors through untouched and wraps everything else
// as a store failure.
func (e *engine) classify(op string, err error) error {
	if IsBusinessError(err) {
		return err
	}
	return &StoreUnavailableError{Op: op, Err: err}
}

// backoff sleeps between conflict retries: exponential from the base, capped,
// with jitter so colliding writers spread out. Honors context cancellation.
func (e *engine) backoff(ctx context.Context, attempt int) error {
	d := e.backoffBase << uint(attempt)
	if d > e.backoffMax || d <= 0 {
		d = e.backoffMax
	}
	d = d/2 + time.Duration(rand.Int63n(int64(d/2)+1))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *engine) observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// replayReceipt reconstructs the original result from the metadata written at
// finalization time.
func replayReceipt(tx *transaction.Transaction) *Receipt {
	receipt := &Receipt{Transaction: tx, Replayed: true}
	if v, ok := tx.Metadata[transaction.MetaBalanceAfter]; ok {
		receipt.BalanceAfter, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := tx.Metadata[transaction.MetaFromBalanceAfter]; ok {
		receipt.BalanceAfter, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := tx.Metadata[transaction.MetaToBalanceAfter]; ok {
		receipt.ToBalanceAfter, _ = strconv.ParseInt(v, 10, 64)
	}
	return receipt
}

func affectedBalance(acc *account.Account, kind shared.TransactionKind) int64 {
	if kind.Balance() == shared.BalanceWallet {
		return acc.WalletBalance
	}
	return acc.CreditBalance
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
