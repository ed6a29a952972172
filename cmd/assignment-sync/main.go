package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/noah-isme/assignment-sync/api/swagger"
	"github.com/noah-isme/assignment-sync/internal/bootstrap"
	"github.com/noah-isme/assignment-sync/internal/service"
	"github.com/noah-isme/assignment-sync/pkg/config"
	"github.com/noah-isme/assignment-sync/pkg/jobs"
	"github.com/noah-isme/assignment-sync/pkg/logger"
)

// @title Assignment Sync API
// @version 1.0.0
// @description Matches Canvas courses to tracking-sheet tabs and syncs their assignments.
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.BuildDependencies(ctx, cfg, logr)
	if err != nil {
		logr.Sugar().Fatalw("failed to build dependencies", "error", err)
	}
	defer deps.Close()

	queue := jobs.NewQueue("sync", deps.Runs.Handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: cfg.Sync.RunBuffer,
		MaxRetries: cfg.Sync.WorkerRetries,
		RetryDelay: 30 * time.Second,
		Retryable:  service.RetryableSyncError,
		OnGiveUp:   deps.Runs.GiveUp,
		Logger:     logr.Named("queue"),
	})
	deps.Runs.SetQueue(queue)
	queue.Start(context.Background())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           bootstrap.SetupRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "sheet_source", cfg.Source)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("server forced to shutdown", "error", err)
	}
	if err := queue.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("sync run interrupted by shutdown", "error", err)
	}
}
