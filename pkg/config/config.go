package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// LocalKeysFile is the optional JSON override file read from the working directory.
	LocalKeysFile = "keys.local.json"
)

// DefaultExcludedTabs are the administrative sheet tabs that never hold class rows.
var DefaultExcludedTabs = []string{"dashboard", "class[template]"}

type Config struct {
	Env       string `validate:"required,oneof=development production test"`
	Port      int    `validate:"gte=0,lte=65535"`
	APIPrefix string

	Canvas   CanvasConfig
	Sheet    SheetConfig
	Sync     SyncConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Report   ReportConfig
	CORS     CORSConfig
	Log      LogConfig
	Metrics  MetricsConfig
	Location *time.Location `validate:"required"`

	// Source records where the endpoint URLs were resolved from.
	Source string
}

// CanvasConfig describes the upstream course/assignment API.
type CanvasConfig struct {
	BaseURL     string `validate:"required,url"`
	AccessToken string
	Timeout     time.Duration
}

// SheetConfig describes the Apps Script endpoint fronting the tracking sheet.
type SheetConfig struct {
	APIURL       string `validate:"required,url"`
	Timeout      time.Duration
	TabsTimeout  time.Duration
	ExcludedTabs []string
}

// SyncConfig tunes session handling and local exports.
type SyncConfig struct {
	OutputDir     string
	ExportOutputs bool
	LockTTL       time.Duration
	WorkerRetries int `validate:"gte=0"`
	RunBuffer     int
	TabCacheTTL   time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig configures operator tokens. An empty secret leaves routes open.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// ReportConfig configures signed report download links.
type ReportConfig struct {
	SigningSecret string
	LinkTTL       time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg, err := fromViper(v)
	if err != nil {
		return nil, err
	}

	overrides, err := readLocalKeys(LocalKeysFile)
	if err != nil {
		return nil, err
	}
	applyLocalKeys(cfg, overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Canvas = CanvasConfig{
		BaseURL:     strings.TrimRight(v.GetString("CANVAS_BASE_URL"), "/"),
		AccessToken: v.GetString("CANVAS_ACCESS_TOKEN"),
		Timeout:     parseDuration(v.GetString("CANVAS_TIMEOUT"), 30*time.Second),
	}

	excluded := splitAndTrim(v.GetString("SHEET_EXCLUDED_TABS"))
	if len(excluded) == 0 {
		excluded = append([]string(nil), DefaultExcludedTabs...)
	}
	cfg.Sheet = SheetConfig{
		APIURL:       v.GetString("SHEET_API_URL"),
		Timeout:      parseDuration(v.GetString("SHEET_TIMEOUT"), 60*time.Second),
		TabsTimeout:  parseDuration(v.GetString("SHEET_TABS_TIMEOUT"), 30*time.Second),
		ExcludedTabs: excluded,
	}

	cfg.Sync = SyncConfig{
		OutputDir:     v.GetString("OUTPUT_DIR"),
		ExportOutputs: v.GetBool("EXPORT_OUTPUTS"),
		LockTTL:       parseDuration(v.GetString("SYNC_LOCK_TTL"), 15*time.Minute),
		WorkerRetries: v.GetInt("SYNC_WORKER_RETRIES"),
		RunBuffer:     v.GetInt("SYNC_RUN_BUFFER"),
		TabCacheTTL:   parseDuration(v.GetString("TAB_CACHE_TTL"), 2*time.Minute),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		TTL:    parseDuration(v.GetString("JWT_TTL"), 12*time.Hour),
	}

	signingSecret := v.GetString("REPORT_SIGNING_SECRET")
	if signingSecret == "" {
		signingSecret = cfg.JWT.Secret
	}
	cfg.Report = ReportConfig{
		SigningSecret: signingSecret,
		LinkTTL:       parseDuration(v.GetString("REPORT_LINK_TTL"), time.Hour),
	}
	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("ENABLE_METRICS")}

	loc, err := loadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	cfg.Source = "built-in defaults"
	if os.Getenv("SHEET_API_URL") != "" || os.Getenv("CANVAS_BASE_URL") != "" {
		cfg.Source = "environment"
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("CANVAS_BASE_URL", "https://umsystem.instructure.com")
	v.SetDefault("CANVAS_ACCESS_TOKEN", "")
	v.SetDefault("CANVAS_TIMEOUT", "30s")

	v.SetDefault("SHEET_API_URL", "")
	v.SetDefault("SHEET_TIMEOUT", "60s")
	v.SetDefault("SHEET_TABS_TIMEOUT", "30s")
	v.SetDefault("SHEET_EXCLUDED_TABS", strings.Join(DefaultExcludedTabs, ","))

	v.SetDefault("TIMEZONE", "Local")
	v.SetDefault("OUTPUT_DIR", "./outputs")
	v.SetDefault("EXPORT_OUTPUTS", true)
	v.SetDefault("SYNC_LOCK_TTL", "15m")
	v.SetDefault("SYNC_WORKER_RETRIES", 0)
	v.SetDefault("SYNC_RUN_BUFFER", 4)
	v.SetDefault("TAB_CACHE_TTL", "2m")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "12h")
	v.SetDefault("REPORT_SIGNING_SECRET", "")
	v.SetDefault("REPORT_LINK_TTL", "1h")
	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("ENABLE_METRICS", true)
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// readLocalKeys loads the optional keys.local.json endpoint overrides.
func readLocalKeys(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	overrides := make(map[string]string)
	for _, key := range []string{"SHEET_API_URL", "CANVAS_BASE_URL"} {
		if value := strings.TrimSpace(v.GetString(key)); value != "" {
			overrides[key] = value
		}
	}
	return overrides, nil
}

func applyLocalKeys(cfg *Config, overrides map[string]string) {
	if len(overrides) == 0 {
		return
	}
	if value, ok := overrides["SHEET_API_URL"]; ok {
		cfg.Sheet.APIURL = value
	}
	if value, ok := overrides["CANVAS_BASE_URL"]; ok {
		cfg.Canvas.BaseURL = strings.TrimRight(value, "/")
	}
	cfg.Source = LocalKeysFile
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
