package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/ledger"
)

// MarketplaceAdapter settles marketplace offer purchases: a transfer of the
// offer's cost from buyer to seller. The caller marks the offer completed only
// after the transfer reports completed.
type MarketplaceAdapter struct {
	engine ledger.Engine
	events EventPublisher
	logger *slog.Logger
}

func NewMarketplaceAdapter(logger *slog.Logger, engine ledger.Engine, events EventPublisher) *MarketplaceAdapter {
	return &MarketplaceAdapter{
		engine: engine,
		events: events,
		logger: logger,
	}
}

// SettleOfferPurchase transfers the offer cost from buyer to seller.
// The key includes the buyer so two buyers racing for the same offer settle
// independently; the offer itself is awarded by the marketplace service.
func (a *MarketplaceAdapter) SettleOfferPurchase(ctx context.Context, buyer, seller uuid.UUID, offerID string, cost int64) (*ledger.Receipt, error) {
	key := offerID + ":" + buyer.String()
	receipt, err := a.engine.Transfer(ctx, buyer, seller, cost, key, map[string]string{
		"offer_id": offerID,
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, a.logger, a.events, receipt)
	return receipt, nil
}
