package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// TerritoryAdapter settles territory claims: a straight debit of the claim
// cost, keyed by the claim attempt so a retried claim is charged once.
type TerritoryAdapter struct {
	engine ledger.Engine
	events EventPublisher
	logger *slog.Logger
}

func NewTerritoryAdapter(logger *slog.Logger, engine ledger.Engine, events EventPublisher) *TerritoryAdapter {
	return &TerritoryAdapter{
		engine: engine,
		events: events,
		logger: logger,
	}
}

// SettleClaim debits the agent for the territory claim
func (a *TerritoryAdapter) SettleClaim(ctx context.Context, agent uuid.UUID, claimAttemptID string, area string, cost int64) (*ledger.Receipt, error) {
	receipt, err := a.engine.Debit(ctx, agent, cost, shared.KindCreditSpend, claimAttemptID, map[string]string{
		"area": area,
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, a.logger, a.events, receipt)
	return receipt, nil
}
