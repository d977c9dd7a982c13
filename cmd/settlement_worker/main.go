package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/propmarket-credit-ledger/internal/config"
	"github.com/propmarket-credit-ledger/internal/data/memory"
	"github.com/propmarket-credit-ledger/internal/data/mongo"
	"github.com/propmarket-credit-ledger/internal/data/postgres"
	"github.com/propmarket-credit-ledger/internal/domain/account"
	"github.com/propmarket-credit-ledger/internal/domain/transaction"
	"github.com/propmarket-credit-ledger/internal/ledger"
	"github.com/propmarket-credit-ledger/internal/logger"
	"github.com/propmarket-credit-ledger/internal/platform/messaging/consumers"
	"github.com/propmarket-credit-ledger/internal/platform/messaging/producers"
	"github.com/propmarket-credit-ledger/internal/platform/persistence"
	"github.com/propmarket-credit-ledger/internal/reconciler"
	"github.com/propmarket-credit-ledger/internal/reward"
	"github.com/propmarket-credit-ledger/internal/settlement"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("settlement_worker")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Settlement Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"store_driver", cfg.Store.Driver,
	)

	// Initialize stores
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

	// Initialize Kafka DLQ producer. Nil when no DLQ topic is configured; the
	// reward handler is nil-safe.
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize the ledger engine and the reward settlement path
	engine := ledger.NewEngine(log, accounts, txLog, &cfg.Engine)
	rewardAdapter := settlement.NewRewardAdapter(log, engine, eventProducer)

	workerPool, err := reward.NewWorkerPool(log, rewardAdapter, reward.WorkerPoolConfig{Size: cfg.WorkerPool.Size})
	if err != nil {
		log.Error("Failed to initialize reward worker pool", "error", err)
		os.Exit(1)
	}

	var rewardHandler *reward.EventHandler
	if dlqProducer != nil {
		rewardHandler = reward.NewEventHandler(log, workerPool, dlqProducer)
	} else {
		rewardHandler = reward.NewEventHandler(log, workerPool, nil)
	}

	// Initialize Kafka consumer for reward events
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize the stale-pending reconciler
	sweep := reconciler.NewReconciler(log, txLog, &cfg.Reconciler)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer
	log.Info("Starting Kafka consumer",
		"topic", cfg.Kafka.RewardTopic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.RewardTopic, cfg.Kafka.ConsumerGroup, rewardHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("kafka consumer error: %w", err)
	}

	// Start the reconciler in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweep.Run(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shut down the worker pool, no new settlements are accepted
	workerPool.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka consumer and producers
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}
	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing settlement event producer", "error", err)
	}

	// Close data stores
	if postgresDB != nil {
		postgresDB.Close()
	}
	if mongoDB != nil {
		if err = mongoDB.Close(shutdownCtx); err != nil {
			log.Error("Error closing MongoDB connection", "error", err)
		}
	}

	// Final status
	if serviceErr != nil {
		log.Error("Settlement Worker shutdown with errors", "error", serviceErr)
	} else {
		log.Info("Settlement Worker shutdown completed successfully")
	}
}
