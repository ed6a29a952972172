// Package bootstrap assembles the clients, services and router shared by the
// server and the one-shot CLI.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/assignment-sync/internal/canvas"
	"github.com/noah-isme/assignment-sync/internal/repository"
	"github.com/noah-isme/assignment-sync/internal/service"
	"github.com/noah-isme/assignment-sync/internal/sheets"
	"github.com/noah-isme/assignment-sync/pkg/cache"
	"github.com/noah-isme/assignment-sync/pkg/config"
	"github.com/noah-isme/assignment-sync/pkg/storage"
)

type sessionLock interface {
	Acquire(ctx context.Context, owner string) (bool, error)
	Release(ctx context.Context, owner string) error
}

// Dependencies holds every long-lived component of the process.
type Dependencies struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *service.MetricsService
	Redis   *redis.Client
	Outputs *storage.OutputStore

	Canvas    *canvas.Client
	Sheet     *sheets.Client
	Collector *service.CollectorService
	Exports   *service.ExportService
	Cache     *service.CacheService
	Auth      *service.AuthService
	Sync      *service.SyncService
	Runs      *service.RunService
	Lock      sessionLock
}

// BuildDependencies wires the process from configuration. Redis is optional;
// without it the session lock is process-local.
func BuildDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	metrics := service.NewMetricsService()

	outputs, err := storage.NewOutputStore(cfg.Sync.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("prepare output dir: %w", err)
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}

	var lock sessionLock = repository.NewMemoryLock()
	if redisClient != nil {
		lock = repository.NewRedisLock(redisClient, cfg.Sync.LockTTL, logger.Named("lock"))
		logger.Info("using redis session lock", zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))
	}

	canvasClient := canvas.NewClient(
		cfg.Canvas.BaseURL,
		canvas.NewHTTPClient(cfg.Canvas.AccessToken, cfg.Canvas.Timeout),
		metrics,
		logger.Named("canvas"),
	)

	sheetClient := sheets.NewClient(sheets.Config{
		Endpoint:     cfg.Sheet.APIURL,
		ExcludedTabs: cfg.Sheet.ExcludedTabs,
		Timeout:      cfg.Sheet.Timeout,
		TabsTimeout:  cfg.Sheet.TabsTimeout,
	}, &http.Client{}, outputs, metrics, logger.Named("sheets"))

	collector := service.NewCollectorService(canvasClient, cfg.Location, metrics, logger.Named("collector"))

	exports := service.NewExportService(
		outputs,
		storage.NewReportSigner(cfg.Report.SigningSecret, cfg.Report.LinkTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, Enabled: cfg.Sync.ExportOutputs},
		logger.Named("export"),
		nil,
		nil,
	)

	cacheService := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logger.Named("cache")),
		metrics,
		cfg.Sync.TabCacheTTL,
		logger.Named("cache"),
		redisClient != nil && cfg.Sync.TabCacheTTL > 0,
	)

	syncService := service.NewSyncService(
		sheetClient,
		collector,
		lock,
		exports,
		canvasClient,
		metrics,
		validator.New(),
		logger.Named("sync"),
	).WithCatalogCache(cacheService, cfg.Sync.TabCacheTTL)

	runs := service.NewRunService(
		repository.NewRunRepository(repository.DefaultRunCapacity),
		syncService,
		exports,
		cfg.Sync.WorkerRetries,
		logger.Named("runs"),
	)

	return &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Redis:     redisClient,
		Outputs:   outputs,
		Canvas:    canvasClient,
		Sheet:     sheetClient,
		Collector: collector,
		Exports:   exports,
		Cache:     cacheService,
		Auth:      service.NewAuthService(cfg.JWT.Secret, cfg.JWT.TTL),
		Sync:      syncService,
		Runs:      runs,
		Lock:      lock,
	}, nil
}

// Close releases external connections.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
