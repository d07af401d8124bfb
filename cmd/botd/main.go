package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bot-ledger-go/internal/api"
	"bot-ledger-go/internal/config"
	"bot-ledger-go/internal/database"
	"bot-ledger-go/internal/ledger"
	"bot-ledger-go/internal/logger"
	"bot-ledger-go/internal/trader"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	programID, err := ledger.ParseIdentity(cfg.Ledger.ProgramID)
	if err != nil {
		log.Fatal("Invalid program id", zap.String("program_id", cfg.Ledger.ProgramID), zap.Error(err))
	}

	// Connect to the database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.", zap.String("dsn", cfg.Database.DSN))

	store := ledger.NewStore(db, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := trader.NewMetrics(reg)

	active, err := store.CountActiveBots(context.Background())
	if err != nil {
		log.Fatal("Failed to count active bots", zap.Error(err))
	}
	metrics.SetActiveBots(active)

	processor := trader.NewProcessor(log, store, trader.Options{
		ProgramID:           programID,
		EnforceRiskBound:    cfg.Trading.EnforceRiskBound,
		LamportsPerByteYear: cfg.Ledger.LamportsPerByteYear,
	}, metrics)

	handler := api.NewHandler(log, processor, store, cfg.Node.Airdrop)
	server := api.NewAPIServer(cfg.Node, handler, reg, log)
	server.Start()
	log.Info("Node is running",
		zap.Stringer("program_id", programID),
		zap.Int("active_bots", active),
		zap.Bool("airdrop", cfg.Node.Airdrop.Enabled),
	)

	// Wait for shutdown signal
	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Error("Failed to stop API server", zap.Error(err))
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("Node has been shut down.")
}
