// Package mongo provides the MongoDB implementation of the append-only
// transaction log.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
)

const (
	// TransactionCollectionName is the name of the transaction log collection
	TransactionCollectionName = "transactions"
)

// TransactionRepository implements the transaction.Repository interface for MongoDB
type TransactionRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewTransactionRepository creates a new MongoDB transaction repository
func NewTransactionRepository(logger *slog.Logger, db *mongo.Database) *TransactionRepository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

var _ transaction.Repository = (*TransactionRepository)(nil)

// EnsureIndexes creates the indexes the repository depends on. Called once at
// startup; index creation is idempotent on the server side.
func (r *TransactionRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(TransactionCollectionName)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "transaction_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "idempotency_key", Value: 1}, {Key: "kind", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetPartialFilterExpression(bson.M{
				"idempotency_key": bson.M{"$exists": true},
			}),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "from_account_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "to_account_id", Value: 1}, {Key: "created_at", Value: -1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}
	return nil
}

// Append stores a new pending transaction after checking for a live entry
// holding the same idempotency key and kind.
func (r *TransactionRepository) Append(ctx context.Context, tx *transaction.Transaction) error {
	collection := r.db.Collection(TransactionCollectionName)

	if tx.IdempotencyKey != "" {
		existing, err := r.FindByIdempotencyKey(ctx, tx.IdempotencyKey, tx.Kind)
		if err != nil {
			r.logger.Error("Failed to check for existing transaction",
				"idempotency_key", tx.IdempotencyKey,
				"error", err)
			return fmt.Errorf("failed to check for existing transaction: %w", err)
		}
		if existing != nil && existing.Status != shared.TransactionStatusFailed {
			return transaction.ErrDuplicateKey{IdempotencyKey: tx.IdempotencyKey, Kind: tx.Kind}
		}
	}

	tx.Status = shared.TransactionStatusPending
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	if _, err := collection.InsertOne(ctx, tx); err != nil {
		r.logger.Error("Failed to append transaction",
			"transaction_id", tx.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// Finalize transitions a pending transaction to a terminal status and merges
// metadata into the record. Finalizing an already-terminal transaction returns
// the existing record unchanged.
func (r *TransactionRepository) Finalize(ctx context.Context, transactionID uuid.UUID, status shared.TransactionStatus, reason string, metadata map[string]string) (*transaction.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	set := bson.M{
		"status":         status,
		"failure_reason": reason,
		"completed_at":   time.Now().UTC(),
	}
	for k, v := range metadata {
		set["metadata."+k] = v
	}

	// Filter on pending so a terminal record is never rewritten
	filter := bson.M{
		"transaction_id": transactionID,
		"status":         shared.TransactionStatusPending,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated transaction.Transaction
	err := collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		r.logger.Error("Failed to finalize transaction",
			"transaction_id", transactionID.String(),
			"status", string(status),
			"error", err)
		return nil, fmt.Errorf("failed to finalize transaction: %w", err)
	}

	// Either the transaction does not exist or it is already terminal
	existing, err := r.GetByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// FindByIdempotencyKey returns the newest transaction for the key/kind pair,
// or nil when none exists.
func (r *TransactionRepository) FindByIdempotencyKey(ctx context.Context, key string, kind shared.TransactionKind) (*transaction.Transaction, error) {
	if key == "" {
		return nil, nil
	}

	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"idempotency_key": key, "kind": kind}
	opts := options.FindOne().SetSort(bson.M{"created_at": -1})

	var tx transaction.Transaction
	err := collection.FindOne(ctx, filter, opts).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		r.logger.Error("Failed to get transaction by idempotency key",
			"idempotency_key", key,
			"error", err)
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}

	return &tx, nil
}

// GetByTransactionID retrieves a transaction by its ID.
// Returns ErrNotFound if no transaction exists.
func (r *TransactionRepository) GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*transaction.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"transaction_id": transactionID}
	var tx transaction.Transaction
	err := collection.FindOne(ctx, filter).Decode(&tx)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, transaction.ErrNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get transaction",
			"transaction_id", transactionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &tx, nil
}

// GetByAccountID retrieves paginated transactions touching an account on
// either side. Results are sorted by creation time in descending order.
func (r *TransactionRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"$or": []bson.M{
		{"from_account_id": accountID},
		{"to_account_id": accountID},
	}}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get transactions",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []*transaction.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		r.logger.Error("Failed to decode transactions",
			"account_id", accountID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}

	return txs, nil
}

// CountByAccountID counts the transactions touching an account
func (r *TransactionRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"$or": []bson.M{
		{"from_account_id": accountID},
		{"to_account_id": accountID},
	}}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count transactions",
			"account_id", accountID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// FindStalePending returns pending transactions created before the cutoff,
// oldest first.
func (r *TransactionRepository) FindStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*transaction.Transaction, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{
		"status":     shared.TransactionStatusPending,
		"created_at": bson.M{"$lt": olderThan},
	}
	opts := options.Find().
		SetSort(bson.M{"created_at": 1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to find stale pending transactions", "error", err)
		return nil, fmt.Errorf("failed to find stale pending transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []*transaction.Transaction
	if err := cursor.All(ctx, &txs); err != nil {
		r.logger.Error("Failed to decode stale pending transactions", "error", err)
		return nil, fmt.Errorf("failed to decode stale pending transactions: %w", err)
	}

	return txs, nil
}
