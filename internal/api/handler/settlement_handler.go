package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/propmarket-credit-ledger/internal/settlement"
)

// SettlementHandler exposes the four settlement flows over HTTP. Each endpoint
// binds and validates the request, delegates to the matching adapter, and maps
// the result to a receipt response.
type SettlementHandler struct {
	purchases      *settlement.PurchaseAdapter
	marketplace    *settlement.MarketplaceAdapter
	collaborations *settlement.CollaborationAdapter
	territories    *settlement.TerritoryAdapter
	logger         *slog.Logger
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(
	logger *slog.Logger,
	purchases *settlement.PurchaseAdapter,
	marketplace *settlement.MarketplaceAdapter,
	collaborations *settlement.CollaborationAdapter,
	territories *settlement.TerritoryAdapter,
) *SettlementHandler {
	return &SettlementHandler{
		purchases:      purchases,
		marketplace:    marketplace,
		collaborations: collaborations,
		territories:    territories,
		logger:         logger,
	}
}

// SettlePurchase handles a credit-bundle purchase settlement
func (h *SettlementHandler) SettlePurchase(c *gin.Context) {
	var req SettlePurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	buyer, err := uuid.Parse(req.BuyerID)
	if err != nil {
		RespondBadRequest(c, "Invalid buyer ID")
		return
	}

	receipt, err := h.purchases.SettleBundlePurchase(c.Request.Context(), buyer, req.BundleID, req.TotalCredits, req.PaymentRef)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapReceiptToResponse(receipt, false))
}

// SettleOffer handles a marketplace offer purchase settlement
func (h *SettlementHandler) SettleOffer(c *gin.Context) {
	var req SettleOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	buyer, err := uuid.Parse(req.BuyerID)
	if err != nil {
		RespondBadRequest(c, "Invalid buyer ID")
		return
	}
	seller, err := uuid.Parse(req.SellerID)
	if err != nil {
		RespondBadRequest(c, "Invalid seller ID")
		return
	}

	receipt, err := h.marketplace.SettleOfferPurchase(c.Request.Context(), buyer, seller, req.OfferID, req.Cost)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapReceiptToResponse(receipt, true))
}

// SettleCollaboration handles a collaboration completion settlement
func (h *SettlementHandler) SettleCollaboration(c *gin.Context) {
	var req SettleCollaborationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	from, err := uuid.Parse(req.FromAgentID)
	if err != nil {
		RespondBadRequest(c, "Invalid from agent ID")
		return
	}
	to, err := uuid.Parse(req.ToAgentID)
	if err != nil {
		RespondBadRequest(c, "Invalid to agent ID")
		return
	}

	receipt, err := h.collaborations.SettleCompletion(c.Request.Context(), from, to, req.CollaborationID, req.Credits)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapReceiptToResponse(receipt, true))
}

// SettleTerritory handles a territory claim settlement
func (h *SettlementHandler) SettleTerritory(c *gin.Context) {
	var req SettleTerritoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	agent, err := uuid.Parse(req.AgentID)
	if err != nil {
		RespondBadRequest(c, "Invalid agent ID")
		return
	}

	receipt, err := h.territories.SettleClaim(c.Request.Context(), agent, req.ClaimAttemptID, req.Area, req.Cost)
	if err != nil {
		respondEngineError(c, h.logger, err)
		return
	}

	RespondOK(c, mapReceiptToResponse(receipt, false))
}
