package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"veridraws/internal/api"
	"veridraws/internal/blockchain"
	"veridraws/internal/config"
	"veridraws/internal/logger"
	"veridraws/internal/notifier"
	"veridraws/internal/scheduler"
	"veridraws/internal/storage"
	"veridraws/internal/tracker"
	"veridraws/internal/wallet"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(cfg.Logger()); err != nil {
		fmt.Fprintf(os.Stderr, "initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.NewSqliteStorage(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage initialization failed", zap.Error(err))
	}
	defer db.Close()

	signer, err := wallet.LoadKeypairWallet(cfg.WalletKeypairPath)
	if err != nil {
		logger.Fatal("wallet initialization failed", zap.Error(err))
	}

	source := blockchain.NewRPCSource(cfg.RPCEndpoint, cfg.RPCCommitment())
	trackerInstance := tracker.NewTracker(source, blockchain.NewBorshDecoder(), signer, cfg.TrackerOptions()).
		WithStorage(db)

	if err := trackerInstance.VerifyProgram(ctx); err != nil {
		if tracker.KindOf(err) == tracker.KindInvalid {
			logger.Fatal("program verification failed", zap.String("program", cfg.ProgramID), zap.Error(err))
		}
		logger.Warn("program verification skipped, rpc unavailable", zap.Error(err))
	}

	if cfg.RabbitMQURL != "" {
		producer, err := notifier.NewEventProducer(cfg.RabbitMQURL, cfg.SyncEventExchange)
		if err != nil {
			logger.Fatal("event producer initialization failed", zap.Error(err))
		}
		defer producer.Close()
		trackerInstance.WithPublisher(producer)
	} else {
		logger.Info("RABBITMQ_URL not set, sync events disabled")
	}

	if err := trackerInstance.RestoreWallet(); err != nil {
		logger.Warn("restoring persisted draws failed", zap.Error(err))
	}

	go func() {
		if _, err := trackerInstance.SyncWallet(ctx); err != nil {
			logger.Warn("initial sync failed", zap.Error(err))
		}
	}()

	jobs := scheduler.NewScheduler(ctx, trackerInstance, cfg.SyncSchedule)
	if err := jobs.Start(); err != nil {
		logger.Fatal("scheduler initialization failed", zap.Error(err))
	}

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.NewRouter(api.NewHandler(trackerInstance)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("http server stopped unexpectedly", zap.Error(err))
	case <-waitForInterrupt():
		logger.Info("interrupt received, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	select {
	case <-jobs.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("sync job still running at shutdown")
	}

	logger.Info("shutdown complete")
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
