package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/assignment-sync/pkg/config"
	appErrors "github.com/noah-isme/assignment-sync/pkg/errors"
)

func newObservedRouter() (*gin.Engine, *observer.ObservedLogs) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	r := gin.New()
	r.Use(GinMiddleware(zap.New(core), "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/tabs", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/sync/runs/:id", func(c *gin.Context) {
		_ = c.Error(appErrors.ErrRemoteRejected)
		c.Status(http.StatusBadGateway)
	})
	return r, logs
}

func TestGinMiddlewareLevels(t *testing.T) {
	r, logs := newObservedRouter()

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tabs", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sync/runs/run-7", nil))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)

	failed := entries[2]
	assert.Equal(t, zapcore.ErrorLevel, failed.Level)
	fields := failed.ContextMap()
	assert.Equal(t, "REMOTE_REJECTED", fields["error_code"])
	assert.Equal(t, "run-7", fields["run_id"])
	assert.EqualValues(t, http.StatusBadGateway, fields["status"])
}

func TestNewConsoleLogger(t *testing.T) {
	cfg := &config.Config{Env: config.EnvDevelopment, Source: "environment"}
	cfg.Log.Format = "console"
	cfg.Log.Level = "debug"

	l, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
