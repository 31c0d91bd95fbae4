package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"toolhub/internal/core/domain"
)

// Config holds all configuration for the application
type Config struct {
	AppMode   string
	Port      string
	EnvLoaded bool
	Database  DatabaseConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	Redis     RedisConfig
	Loan      LoanConfig
	Import    ImportConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string // mysql | postgres | sqlite
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// RedisConfig holds the report cache connection. Empty Addr disables caching.
type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SummaryTTL int // seconds
}

// LoanConfig holds lending rules
type LoanConfig struct {
	FinePerDay decimal.Decimal
}

// ImportConfig holds spreadsheet import defaults
type ImportConfig struct {
	DefaultPassword string
	MaxRows         int
}

// SchedulerConfig holds cron specs
type SchedulerConfig struct {
	Enabled     bool
	OverdueCron string
}

// NotifyConfig holds the outgoing webhook
type NotifyConfig struct {
	WebhookURL string
	TimeoutSec int
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// .env is optional in production
	envLoaded := godotenv.Load() == nil

	// trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	loanCfg, err := loadLoanConfig()
	if err != nil {
		return nil, err
	}

	dbCfg := loadDatabaseConfig(appMode)
	switch dbCfg.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql', 'postgres' or 'sqlite')", dbCfg.Driver)
	}

	config := &Config{
		AppMode:   appMode,
		Port:      getEnv("PORT", "3000"),
		EnvLoaded: envLoaded,
		Database:  dbCfg,
		JWT:       loadJWTConfig(appMode),
		Cookie:    loadCookieConfig(appMode),
		Redis:     loadRedisConfig(appMode),
		Loan:      loanCfg,
		Import:    loadImportConfig(),
		Scheduler: loadSchedulerConfig(),
		Notify:    loadNotifyConfig(),
	}

	return config, nil
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)
	driver := strings.ToLower(strings.TrimSpace(getEnv("DB_DRIVER", "mysql")))

	defaultPort := "3306"
	defaultUser := "root"
	if driver == "postgres" {
		defaultPort = "5432"
		defaultUser = "postgres"
	}

	if driver == "sqlite" {
		return DatabaseConfig{
			Driver: driver,
			DBName: getEnv(prefix+"DB_PATH", "toolhub.db"),
		}
	}

	return DatabaseConfig{
		Driver:   driver,
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", defaultPort),
		User:     getEnv(prefix+"DB_USER", defaultUser),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "toolhub"),
		SSLMode:  getEnv(prefix+"DB_SSLMODE", "disable"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	return JWTConfig{
		Secret:           getEnv(prefix+"JWT_SECRET", "default_secret"),
		RefreshSecret:    getEnv(prefix+"JWT_REFRESH_SECRET", "default_refresh_secret"),
		AccessTokenMins:  getEnvInt("ACCESS_TOKEN_MINUTES", 15),
		RefreshTokenDays: getEnvInt("REFRESH_TOKEN_DAYS", 7),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := modePrefix(mode)

	secure, _ := strconv.ParseBool(getEnv(prefix+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

func loadRedisConfig(mode string) RedisConfig {
	prefix := modePrefix(mode)

	return RedisConfig{
		Addr:       getEnv(prefix+"REDIS_ADDR", ""),
		Password:   getEnv(prefix+"REDIS_PASSWORD", ""),
		DB:         getEnvInt(prefix+"REDIS_DB", 0),
		SummaryTTL: getEnvInt("REPORT_CACHE_SECONDS", 300),
	}
}

func loadLoanConfig() (LoanConfig, error) {
	raw := getEnv("FINE_PER_DAY", "")
	if raw == "" {
		return LoanConfig{FinePerDay: domain.DefaultFinePerDay}, nil
	}

	fine, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return LoanConfig{}, fmt.Errorf("invalid FINE_PER_DAY '%s': %w", raw, err)
	}
	if fine.IsNegative() {
		return LoanConfig{}, fmt.Errorf("invalid FINE_PER_DAY '%s': must not be negative", raw)
	}
	return LoanConfig{FinePerDay: fine}, nil
}

func loadImportConfig() ImportConfig {
	return ImportConfig{
		DefaultPassword: getEnv("IMPORT_DEFAULT_PASSWORD", "changeme123"),
		MaxRows:         getEnvInt("IMPORT_MAX_ROWS", 5000),
	}
}

func loadSchedulerConfig() SchedulerConfig {
	enabled, err := strconv.ParseBool(getEnv("SCHEDULER_ENABLED", "true"))
	if err != nil {
		enabled = true
	}

	return SchedulerConfig{
		Enabled:     enabled,
		OverdueCron: getEnv("OVERDUE_CRON", "30 8 * * *"),
	}
}

func loadNotifyConfig() NotifyConfig {
	return NotifyConfig{
		WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		TimeoutSec: getEnvInt("NOTIFY_TIMEOUT_SECONDS", 5),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://toolhub.local"
	}
	return origins
}
