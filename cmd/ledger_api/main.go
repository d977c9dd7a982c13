package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/propmarket-credit-ledger/internal/api"
	"github.com/propmarket-credit-ledger/internal/api/handler"
	"github.com/propmarket-credit-ledger/internal/config"
	"github.com/propmarket-credit-ledger/internal/data/memory"
	"github.com/propmarket-credit-ledger/internal/data/mongo"
	"github.com/propmarket-credit-ledger/internal/data/postgres"
	"github.com/propmarket-credit-ledger/internal/domain/account"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
	"github.com/propmarket-credit-ledger/internal/ledger"
	"github.com/propmarket-credit-ledger/internal/logger"
	"github.com/propmarket-credit-ledger/internal/platform/messaging/producers"
	"github.com/propmarket-credit-ledger/internal/platform/persistence"
	"github.com/propmarket-credit-ledger/internal/settlement"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("ledger_api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Ledger API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"store_driver", cfg.Store.Driver,
	)

	// Initialize stores. The postgres driver keeps accounts in PostgreSQL and
	// the transaction log in MongoDB; the memory driver runs both in-process.
	var (
		accounts   account.Repository
		txLog      transaction.Repository
		postgresDB *persistence.PostgresDB
		mongoDB    *persistence.MongoDB
	)
	if cfg.Store.Driver == "postgres" {
		postgresDB, err = persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
		if err != nil {
			log.Error("Failed to initialize PostgreSQL", "error", err)
			os.Exit(1)
		}

		mongoDB, err = persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
		if err != nil {
			log.Error("Failed to initialize MongoDB", "error", err)
			os.Exit(1)
		}

		accounts = postgres.NewAccountRepository(log, postgresDB)

		txRepo := mongo.NewTransactionRepository(log, mongoDB.Database())
		if err = txRepo.EnsureIndexes(appCtx); err != nil {
			log.Error("Failed to create MongoDB indexes", "error", err)
			os.Exit(1)
		}
		txLog = txRepo
	} else {
		accounts = memory.NewAccountStore()
		txLog = memory.NewTransactionLog()
	}

	// Initialize Kafka producer for settlement events
	eventProducer, err := producers.NewSettlementEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement event producer", "error", err)
		os.Exit(1)
	}

	// Initialize the ledger engine and settlement adapters
	engine := ledger.NewEngine(log, accounts, txLog, &cfg.Engine)

	settlementHandler := handler.NewSettlementHandler(
		log,
		settlement.NewPurchaseAdapter(log, engine, eventProducer),
		settlement.NewMarketplaceAdapter(log, engine, eventProducer),
		settlement.NewCollaborationAdapter(log, engine, eventProducer),
		settlement.NewTerritoryAdapter(log, engine, eventProducer),
	)
	ledgerHandler := handler.NewLedgerHandler(log, engine, accounts, txLog)

	// Initialize REST server
	server := api.NewServer(log, cfg, settlementHandler, ledgerHandler)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing settlement event producer", "error", err)
	}

	if postgresDB != nil {
		postgresDB.Close()
	}
	if mongoDB != nil {
		if err = mongoDB.Close(shutdownCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
