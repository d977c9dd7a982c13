package settlement

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/ledger"
)

// CollaborationAdapter settles completed collaborations: the agreed credits
// move from the initiating agent to the collaborator. The collaboration ID is
// the idempotency key, so a duplicated completion request pays out once.
type CollaborationAdapter struct {
	engine ledger.Engine
	events EventPublisher
	logger *slog.Logger
}

func NewCollaborationAdapter(logger *slog.Logger, engine ledger.Engine, events EventPublisher) *CollaborationAdapter {
	return &CollaborationAdapter{
		engine: engine,
		events: events,
		logger: logger,
	}
}

// SettleCompletion transfers the agreed credits between the collaborators
func (a *CollaborationAdapter) SettleCompletion(ctx context.Context, from, to uuid.UUID, collaborationID string, credits int64) (*ledger.Receipt, error) {
	receipt, err := a.engine.Transfer(ctx, from, to, credits, collaborationID, map[string]string{
		"collaboration_id": collaborationID,
	})
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, a.logger, a.events, receipt)
	return receipt, nil
}
