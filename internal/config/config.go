package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	// NodeID seeds the snowflake generator; must differ per replica.
	NodeID int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBSQLitePath      string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	// DBTransactions=false makes the store report transactions as unsupported.
	DBTransactions bool

	RedisURL       string
	IdempotencyTTL time.Duration
	// IdempotencyPendingTTL bounds how long an unfinished request holds its key.
	IdempotencyPendingTTL time.Duration
	RateLimit             RateLimitConfig

	Allocator AllocatorConfig
	Bootstrap BootstrapConfig
}

// AllocatorConfig tunes customer identifier issuance.
type AllocatorConfig struct {
	MaxAttempts int
	Prefix      string
	Width       int
	CounterName string
	EmailDomain string
}

// RateLimitConfig throttles order submissions per client address. It only
// takes effect when Redis is configured.
type RateLimitConfig struct {
	Enabled    bool
	OrderRate  float64
	OrderBurst int
}

type BootstrapConfig struct {
	ResyncOnStart bool
	EnsureAdmin   bool
	AdminName     string
	AdminDocument string
	AdminEmail    string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "panucci"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":3000"),
		NodeID:            int64(getenvInt("SNOWFLAKE_NODE_ID", 1)),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "orders"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBSQLitePath:      getenv("DATABASE_SQLITE_PATH", "panucci.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBTransactions:    getenvBool("DATABASE_TRANSACTIONS", true),
		RedisURL:          strings.TrimSpace(getenv("REDIS_URL", "")),
		IdempotencyTTL:    getenvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		// Completed results live for IdempotencyTTL.
		IdempotencyPendingTTL: getenvDuration("IDEMPOTENCY_PENDING_TTL", 30*time.Second),
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("ORDER_RATE_LIMIT_ENABLED", true),
			OrderRate:  getenvFloat("ORDER_RATE_LIMIT_RATE", 2),
			OrderBurst: getenvInt("ORDER_RATE_LIMIT_BURST", 10),
		},
		Allocator: AllocatorConfig{
			MaxAttempts: getenvInt("ALLOCATOR_MAX_ATTEMPTS", 10),
			Prefix:      getenv("CUSTOMER_ID_PREFIX", "CL"),
			Width:       getenvInt("CUSTOMER_ID_WIDTH", 4),
			CounterName: getenv("CUSTOMER_COUNTER_NAME", "clienteId"),
			EmailDomain: getenv("CUSTOMER_EMAIL_DOMAIN", "panucci.local"),
		},
		Bootstrap: BootstrapConfig{
			ResyncOnStart: getenvBool("BOOTSTRAP_RESYNC_COUNTER", true),
			EnsureAdmin:   getenvBool("BOOTSTRAP_ENSURE_ADMIN", true),
			AdminName:     getenv("ADMIN_NAME", "administrador"),
			AdminDocument: getenv("ADMIN_DOCUMENT", "999999999"),
			AdminEmail:    getenv("ADMIN_EMAIL", "admin@admin.com"),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
