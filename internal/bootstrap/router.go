package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/assignment-sync/internal/handler"
	"github.com/noah-isme/assignment-sync/internal/middleware"
	"github.com/noah-isme/assignment-sync/pkg/cache"
	"github.com/noah-isme/assignment-sync/pkg/config"
	"github.com/noah-isme/assignment-sync/pkg/logger"
	corsmiddleware "github.com/noah-isme/assignment-sync/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/assignment-sync/pkg/middleware/requestid"
)

var probePaths = []string{"/health", "/ready", "/metrics"}

// SetupRouter registers every HTTP route.
func SetupRouter(deps *Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger, probePaths...))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(deps.Metrics, probePaths...))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(deps.Metrics, readinessChecks(deps))
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	syncHandler := handler.NewSyncHandler(deps.Sync, deps.Runs, cfg.Canvas.BaseURL, deps.Auth.Enabled())
	guard := middleware.JWT(deps.Auth)

	api := r.Group(cfg.APIPrefix)
	api.GET("/tabs", syncHandler.Tabs)
	api.POST("/tabs/match", syncHandler.Match)
	api.GET("/canvas/status", syncHandler.CanvasStatus)
	api.GET("/metrics/summary", metricsHandler.Summary)
	api.GET("/sync/runs", syncHandler.ListRuns)
	api.GET("/sync/runs/:id", syncHandler.GetRun)
	api.GET("/sync/runs/:id/report.pdf", middleware.OptionalJWT(deps.Auth), syncHandler.RunReport)

	audit := deps.Logger.Named("audit")
	operator := api.Group("")
	operator.Use(guard)
	operator.POST("/sync", middleware.Audit(audit, "sync"), syncHandler.Sync)
	operator.POST("/sync/runs", middleware.Audit(audit, "sync_submit"), syncHandler.SubmitRun)
	operator.POST("/clear", middleware.Audit(audit, "clear"), syncHandler.Clear)
	operator.POST("/tabs/dump", middleware.Audit(audit, "dump_tabs"), syncHandler.Dump)

	return r
}

func readinessChecks(deps *Dependencies) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"outputs": func(context.Context) error {
			info, err := os.Stat(deps.Outputs.Dir())
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return fmt.Errorf("%s is not a directory", deps.Outputs.Dir())
			}
			return nil
		},
	}
	if deps.Redis != nil {
		checks["redis"] = cache.Check(deps.Redis)
	}
	return checks
}
