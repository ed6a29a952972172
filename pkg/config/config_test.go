package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SHEET_API_URL", "https://script.example.com/exec")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "https://umsystem.instructure.com", cfg.Canvas.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Canvas.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Sheet.Timeout)
	assert.Equal(t, DefaultExcludedTabs, cfg.Sheet.ExcludedTabs)
	assert.Equal(t, "./outputs", cfg.Sync.OutputDir)
	assert.Equal(t, time.Local, cfg.Location)
	assert.Equal(t, "environment", cfg.Source)
}

func TestLoadRequiresSheetURL(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SHEET_API_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadLocalKeysOverrideEnvironment(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("SHEET_API_URL", "https://env.example.com/exec")
	t.Setenv("CANVAS_BASE_URL", "https://env.instructure.com")

	payload := `{"SHEET_API_URL": "https://local.example.com/exec", "CANVAS_BASE_URL": "https://local.instructure.com/"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, LocalKeysFile), []byte(payload), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://local.example.com/exec", cfg.Sheet.APIURL)
	assert.Equal(t, "https://local.instructure.com", cfg.Canvas.BaseURL)
	assert.Equal(t, LocalKeysFile, cfg.Source)
}

func TestLoadTimezone(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SHEET_API_URL", "https://script.example.com/exec")
	t.Setenv("TIMEZONE", "America/Chicago")
	t.Setenv("SHEET_EXCLUDED_TABS", "Dashboard, Archive ,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", cfg.Location.String())
	assert.Equal(t, []string{"Dashboard", "Archive"}, cfg.Sheet.ExcludedTabs)
}

func TestLoadInvalidTimezone(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SHEET_API_URL", "https://script.example.com/exec")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Load()
	require.Error(t, err)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
}

func TestLoadReportSecretFallsBackToJWT(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SHEET_API_URL", "https://script.example.com/exec")
	t.Setenv("JWT_SECRET", "operator-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "operator-secret", cfg.Report.SigningSecret)
	assert.Equal(t, 12*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, time.Hour, cfg.Report.LinkTTL)

	t.Setenv("REPORT_SIGNING_SECRET", "report-secret")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "report-secret", cfg.Report.SigningSecret)
}
