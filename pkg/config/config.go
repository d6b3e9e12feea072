// ==============================================================================
// CONFIG PACKAGE - pkg/config/config.go
// ==============================================================================
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	HTTP      HTTPConfig
	Reporting ReportingConfig
	Broker    BrokerConfig
	LogLevel  string
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type HTTPConfig struct {
	RateLimitPerMinute int
	IdempotencyTTL     time.Duration
}

// ReportingConfig drives currency normalization and dashboard computation.
type ReportingConfig struct {
	Currency             string
	FallbackRates        map[string]decimal.Decimal
	RateCacheTTL         time.Duration
	RateRefreshSchedule  string
	OverdueSweepSchedule string
	Timezone             string
	WithdrawalSLA        time.Duration
	TopN                 int
}

type BrokerConfig struct {
	URL      string
	Exchange string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-this-secret"),
		},
		HTTP: HTTPConfig{
			RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 120),
			IdempotencyTTL:     getDurationEnv("IDEMPOTENCY_TTL", 24*time.Hour),
		},
		Reporting: ReportingConfig{
			Currency:             strings.ToUpper(getEnv("REPORTING_CURRENCY", "USD")),
			FallbackRates:        parseRates(getEnv("FALLBACK_RATES", "")),
			RateCacheTTL:         getDurationEnv("RATE_CACHE_TTL", 10*time.Minute),
			RateRefreshSchedule:  getEnv("RATE_REFRESH_SCHEDULE", "*/5 * * * *"),
			OverdueSweepSchedule: getEnv("OVERDUE_SWEEP_SCHEDULE", "*/10 * * * *"),
			Timezone:             getEnv("REPORT_TIMEZONE", "UTC"),
			WithdrawalSLA:        getDurationEnv("WITHDRAWAL_SLA", 4*time.Hour),
			TopN:                 getIntEnv("REPORT_TOP_N", 10),
		},
		Broker: BrokerConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "payoutdesk.events"),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// parseRates reads "EUR:1.05,GBP:1.27". Malformed pairs are kept with a zero
// rate so ValidateCore can report them instead of silently dropping them.
func parseRates(raw string) map[string]decimal.Decimal {
	rates := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, found := strings.Cut(pair, ":")
		code = strings.ToUpper(strings.TrimSpace(code))
		if !found || code == "" {
			rates[pair] = decimal.Zero
			continue
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			rate = decimal.Zero
		}
		rates[code] = rate
	}
	return rates
}
