package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// PurchaseAdapter settles credit-bundle purchases. The payment gateway
// reference is the idempotency key, so a replayed gateway webhook grants the
// bundle at most once.
type PurchaseAdapter struct {
	engine ledger.Engine
	events EventPublisher
	logger *slog.Logger
}

func NewPurchaseAdapter(logger *slog.Logger, engine ledger.Engine, events EventPublisher) *PurchaseAdapter {
	return &PurchaseAdapter{
		engine: engine,
		events: events,
		logger: logger,
	}
}

// SettleBundlePurchase credits the buyer with the bundle's credits
func (a *PurchaseAdapter) SettleBundlePurchase(ctx context.Context, buyer uuid.UUID, bundleID string, totalCredits int64, paymentRef string) (*ledger.Receipt, error) {
	receipt, err := a.engine.Credit(ctx, buyer, totalCredits, shared.KindCreditPurchase, paymentRef, map[string]string{
		"bundle_id": bundleID,
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, a.logger, a.events, receipt)
	return receipt, nil
}
