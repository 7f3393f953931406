package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AutomationServiceConfig struct {
	Port        string
	LogDir      string
	LogLevel    string
	PostgresCfg PostgresConfig
	RabbitMQCfg RabbitMQConfig
	RedisCfg    RedisConfig
	MinioCfg    MinioConfig
	AdsAPICfg   AdsAPIConfig
	EngineCfg   EngineConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RabbitMQConfig struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

type MinioConfig struct {
	Enabled        bool
	MinioURL       string
	MinioAccessKey string
	MinioSecretKey string
	MinioLocation  string
	MinioSecure    string
}

// AdsAPIConfig holds Login with Amazon credentials and the advertising API host.
type AdsAPIConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Endpoint     string
	TokenURL     string
	HTTPTimeout  time.Duration
}

type EngineConfig struct {
	TickInterval            time.Duration
	ReportingTimezone       string
	ScheduleUTCOffset       string
	StreamCoverageDays      int
	ReportSettlementLagDays int
	BidFloor                float64
	LookupChunkSize         int
	BudgetResetCron         string
	SchedulerLeaseTTL       time.Duration
}

// New loads .env when present and reads the service configuration from the environment
func New() *AutomationServiceConfig {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &AutomationServiceConfig{
		Port:     getEnvOrDefault("PORT", "8090"),
		LogDir:   getEnvOrDefault("LOG_DIR", "/ppc/log/automation_service"),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "ppc_automation"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RabbitMQCfg: RabbitMQConfig{
			Enabled:  getBoolOrDefault("RABBITMQ_ENABLED", false),
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		RedisCfg: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		MinioCfg: MinioConfig{
			Enabled:        getBoolOrDefault("MINIO_ENABLED", false),
			MinioURL:       getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9000"),
			MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:  getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:    getEnvOrDefault("MINIO_SECURE", "false"),
		},
		AdsAPICfg: AdsAPIConfig{
			ClientID:     getEnvOrDefault("ADS_API_CLIENT_ID", ""),
			ClientSecret: getEnvOrDefault("ADS_API_CLIENT_SECRET", ""),
			RefreshToken: getEnvOrDefault("ADS_API_REFRESH_TOKEN", ""),
			Endpoint:     getEnvOrDefault("ADS_API_ENDPOINT", "https://advertising-api.amazon.com"),
			TokenURL:     getEnvOrDefault("LWA_TOKEN_URL", "https://api.amazon.com/auth/o2/token"),
			HTTPTimeout:  getDurationOrDefault("HTTP_TIMEOUT", 30*time.Second),
		},
		EngineCfg: EngineConfig{
			TickInterval:            getDurationOrDefault("TICK_INTERVAL", time.Minute),
			ReportingTimezone:       getEnvOrDefault("REPORTING_TIMEZONE", "America/Los_Angeles"),
			ScheduleUTCOffset:       getEnvOrDefault("SCHEDULE_UTC_OFFSET", "+00:00"),
			StreamCoverageDays:      getIntOrDefault("STREAM_COVERAGE_DAYS", 2),
			ReportSettlementLagDays: getIntOrDefault("REPORT_SETTLEMENT_LAG_DAYS", 2),
			BidFloor:                getFloatOrDefault("BID_FLOOR", 0.02),
			LookupChunkSize:         getIntOrDefault("BID_LOOKUP_CHUNK", 100),
			BudgetResetCron:         getEnvOrDefault("BUDGET_RESET_CRON", "55 23 * * *"),
			SchedulerLeaseTTL:       getDurationOrDefault("SCHEDULER_LEASE_TTL", 55*time.Second),
		},
	}
}

// ReportingLocation resolves the zone that defines "today" for stream and report data.
func (c EngineConfig) ReportingLocation() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ReportingTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid reporting timezone %q: %w", c.ReportingTimezone, err)
	}
	return loc, nil
}

// ScheduleLocation parses ScheduleUTCOffset ("+HH:MM" or "-HH:MM") into a fixed zone.
func (c EngineConfig) ScheduleLocation() (*time.Location, error) {
	return ParseUTCOffset(c.ScheduleUTCOffset)
}

func ParseUTCOffset(offset string) (*time.Location, error) {
	if offset == "" || offset == "Z" {
		return time.UTC, nil
	}
	t, err := time.Parse("-07:00", offset)
	if err != nil {
		return nil, fmt.Errorf("invalid utc offset %q: %w", offset, err)
	}
	_, secs := t.Zone()
	return time.FixedZone("UTC"+offset, secs), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer env value, using default", "key", key, "value", value)
		return defaultValue
	}
	return n
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("invalid float env value, using default", "key", key, "value", value)
		return defaultValue
	}
	return f
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("invalid bool env value, using default", "key", key, "value", value)
		return defaultValue
	}
	return b
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration env value, using default", "key", key, "value", value)
		return defaultValue
	}
	return d
}
