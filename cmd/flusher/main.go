package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"live_contest/internal/app/livestore"
	"live_contest/internal/app/worker"
	"live_contest/internal/domain/repository"
	"live_contest/internal/platform/cache"
	"live_contest/internal/platform/config"
	"live_contest/internal/platform/database"
	"live_contest/internal/platform/logger"
)

// flusher runs only the submission flush worker. It can run next to any
// number of servers; the shared lease lock keeps cycles from overlapping.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("Invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("Flusher service starting...")

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// Graceful shutdown on SIGINT or SIGTERM
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	db, err := database.Connect(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	defer database.Close(db, log)

	rdb, err := cache.ConnectRedis(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	defer cache.CloseRedis(rdb, log)

	keys := livestore.NewKeys(cfg.KeyNamespace)
	flusher := worker.NewFlushWorker(
		livestore.NewSubmissionStore(rdb, keys),
		livestore.NewLocker(rdb, keys),
		keys,
		repository.NewPgSubmissionRepository(db),
		worker.FlushConfig{
			Interval:  cfg.FlushInterval,
			BatchSize: cfg.FlushBatchSize,
			LockName:  cfg.FlushLockKey,
			LockTTL:   cfg.FlushLockTTL,
		},
		log,
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		flusher.Start(ctx)
	}()

	// Wait for signal
	<-sigs
	log.Info("Shutdown signal received.")
	cancel()

	// Wait for worker to finish
	wg.Wait()

	finalCtx, finalCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer finalCancel()
	if _, err := flusher.RunOnce(finalCtx); err != nil {
		log.WithError(err).Error("Final flush failed")
	}
	log.Info("Flusher exited cleanly.")
}
