package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/propmarket-credit-ledger/internal/api/handler"
	"github.com/propmarket-credit-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	settlementHandler *handler.SettlementHandler,
	ledgerHandler *handler.LedgerHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Settlement flows
		settlements := v1.Group("/settlements")
		{
			settlements.POST("/purchases", settlementHandler.SettlePurchase)
			settlements.POST("/marketplace", settlementHandler.SettleOffer)
			settlements.POST("/collaborations", settlementHandler.SettleCollaboration)
			settlements.POST("/territories", settlementHandler.SettleTerritory)
		}

		// Account and transaction reads
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", ledgerHandler.CreateAccount)
			accounts.GET("/:id/balance", ledgerHandler.GetBalance)
			accounts.GET("/:id/transactions", ledgerHandler.GetTransactionsByAccount)
		}

		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", ledgerHandler.GetTransaction)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})

	// Prometheus metrics
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
