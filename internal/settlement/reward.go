package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/domain/shared"
	"github.com/propmarket-credit-ledger/internal/ledger"
)

// RewardAdapter settles gamification reward grants (badges, quests). The
// reward event ID is the idempotency key, so redelivered events from the
// broker are applied at most once.
type RewardAdapter struct {
	engine ledger.Engine
	events EventPublisher
	logger *slog.Logger
}

func NewRewardAdapter(logger *slog.Logger, engine ledger.Engine, events EventPublisher) *RewardAdapter {
	return &RewardAdapter{
		engine: engine,
		events: events,
		logger: logger,
	}
}

// SettleReward credits the account with the granted credits
func (a *RewardAdapter) SettleReward(ctx context.Context, accountID uuid.UUID, rewardEventID string, credits int64, source string) (*ledger.Receipt, error) {
	receipt, err := a.engine.Credit(ctx, accountID, credits, shared.KindRewardGrant, rewardEventID, map[string]string{
		"source": source,
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, a.logger, a.events, receipt)
	return receipt, nil
}
