package main

import (
	"context"
	"errors"
	"time"

	"finpulse/internal/analytics"
	"finpulse/internal/backend"
	"finpulse/internal/cache"
	"finpulse/internal/cli"
	"finpulse/internal/log"
	"finpulse/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting analytics-worker")

	cfg := cli.MustLoadConfig(logger)
	if cfg.AMQPURL == "" {
		cli.Fatal(logger, "analytics-worker needs a broker", errors.New("AMQP_URL is not set"))
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	res, err := backend.Build(startCtx, cfg, logger)
	startCancel()
	if err != nil {
		cli.Fatal(logger, "Failed to initialize backend", err)
	}
	if res.AMQP == nil {
		_ = res.Cleanup()
		cli.Fatal(logger, "Failed to connect to AMQP broker", errors.New("broker unreachable at startup"))
	}

	// A shared lock keeps replicas from recomputing the same user at once.
	var locker worker.Locker = worker.NewLocalLocker()
	if res.Redis != nil {
		locker = worker.NewRedisLocker(res.Redis)
	}

	var snapshot worker.LedgerInvalidator
	if res.Snapshot != nil {
		snapshot = res.Snapshot
	}

	w := worker.NewLedgerWorker(res.Engine, locker, snapshot, worker.Options{
		Recompute: cfg.WorkerRecompute,
		Periods:   analytics.AllPeriods,
		LockTTL:   cfg.WorkerLockTTL,
	}, logger)

	janitor := cache.NewManager(logger)
	res.RegisterCleanup(janitor)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		janitor.Stop()
		logger.InfoContext(shutdownCtx, "Worker statistics", "messages_handled", w.Handled())
	})
	janitor.StartCleanup(ctx, cfg.CacheCleanupInterval)

	logger.Info("Consuming ledger changes",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"recompute", cfg.WorkerRecompute)
	if err := w.Run(ctx, res.AMQP); err != nil {
		_ = res.Cleanup()
		cli.Fatal(logger, "Message consumption failed", err)
	}

	cli.WaitForShutdown(ctx, done)
	if err := res.Cleanup(); err != nil {
		logger.Error("Backend cleanup error", log.FieldError, err)
	}
	logger.Info("analytics-worker stopped")
}
