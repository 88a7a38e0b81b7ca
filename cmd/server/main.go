package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"live_contest/internal/api"
	"live_contest/internal/api/ws"
	"live_contest/internal/app/livestore"
	"live_contest/internal/app/service"
	"live_contest/internal/app/worker"
	"live_contest/internal/common/security"
	"live_contest/internal/domain/repository"
	"live_contest/internal/platform/cache"
	"live_contest/internal/platform/config"
	"live_contest/internal/platform/database"
	"live_contest/internal/platform/logger"
)

// Tokens are issued by the account service; this TTL only applies to
// GenerateToken calls made from this process.
const tokenTTL = 24 * time.Hour

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("Invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	log.Info("Configuration loaded.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Database
	db, err := database.Connect(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	defer database.Close(db, log)
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("Schema migration failed")
		}
		log.Info("Schema migrated.")
	}

	// 3. Initialize Redis
	rdb, err := cache.ConnectRedis(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Redis connection failed")
	}
	defer cache.CloseRedis(rdb, log)

	// 4. Stores, repositories and services
	keys := livestore.NewKeys(cfg.KeyNamespace)
	submissions := livestore.NewSubmissionStore(rdb, keys)
	questionRepo := repository.NewPgQuestionRepository(db)
	submissionRepo := repository.NewPgSubmissionRepository(db)

	leaderboardService := service.NewLeaderboardService(livestore.NewLeaderboardStore(rdb, keys))
	contestService := service.NewContestService(
		questionRepo,
		livestore.NewAnswerKeyStore(rdb, keys),
		submissions,
		leaderboardService,
		service.NewDealer(),
		cfg.LeaderboardSize,
		log,
	)

	// 5. Flush worker (as a goroutine)
	flusher := worker.NewFlushWorker(submissions, livestore.NewLocker(rdb, keys), keys, submissionRepo, worker.FlushConfig{
		Interval:  cfg.FlushInterval,
		BatchSize: cfg.FlushBatchSize,
		LockName:  cfg.FlushLockKey,
		LockTTL:   cfg.FlushLockTTL,
	}, log)
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	var workers sync.WaitGroup
	if cfg.FlushEnabled {
		workers.Add(1)
		go func() {
			defer workers.Done()
			flusher.Start(workerCtx)
		}()
	}

	// 6. Router & HTTP Server
	tokens := security.NewTokenAuthority(cfg.JWTKey, tokenTTL)
	registry := ws.NewRegistry()
	live := ws.NewHandler(contestService, tokens, registry, ws.Config{
		WriteTimeout:   cfg.WSWriteTimeout,
		ReadLimitBytes: cfg.WSReadLimitBytes,
	}, log)
	router := api.NewRouter(tokens, live, leaderboardService, cfg.LeaderboardSize, flusher, log)

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.APIPort).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Could not listen")
		}
	}()

	<-ctx.Done()

	// 7. Graceful Shutdown
	log.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	// hijacked websocket connections are not tracked by Shutdown
	n := registry.CloseAll("server shutting down")
	log.WithField("sessions", n).Info("Live sessions closed.")

	workerCancel()
	workers.Wait()
	if res, err := flusher.RunOnce(shutdownCtx); err != nil {
		log.WithError(err).Error("Final flush failed; records stay dirty for the next instance")
	} else if !res.Skipped {
		log.WithField("inserted", res.Inserted).Info("Final flush complete.")
	}

	log.Info("Server and worker stopped gracefully.")
}
