package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string
	LogLevel    string
	HTTPPort    string
	Postgres    PostgresConfig
	Kafka       KafkaConfig
	Analytics   AnalyticsConfig
}

type PostgresConfig struct {
	Host            string
	Port            string
	Database        string
	Username        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SSLMode         string
}

type KafkaConfig struct {
	Enabled          bool
	Brokers          []string
	Topic            string
	GroupID          string
	ProducerRetries  int
	ProducerTimeout  time.Duration
	RequiredAcks     int
	CompressionType  string
	MaxMessageBytes  int
	IdempotentWrites bool
	SessionTimeout   time.Duration
	CommitInterval   time.Duration
}

// AnalyticsConfig holds the derivation knobs. The window limit bounds how many
// recent events a recompute scans, so totals are an approximation once an
// origin exceeds that volume. The visitor ratio and bounce formula are kept
// as-is from the product definition; change them only deliberately.
type AnalyticsConfig struct {
	RecentWindowLimit int
	VisitorRatio      float64
	TimeSeriesDays    int
	TopPagesLimit     int
	RecomputeCoalesce time.Duration
	DemoDomain        string
}

func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
	}

	cfg.Postgres = PostgresConfig{
		Host:            getEnv("POSTGRES_HOST", "localhost"),
		Port:            getEnv("POSTGRES_PORT", "5432"),
		Database:        getEnv("POSTGRES_DB", "veil"),
		Username:        getEnv("POSTGRES_USER", "veil"),
		Password:        getEnv("POSTGRES_PASSWORD", "password"),
		MaxOpenConns:    getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("POSTGRES_CONN_MAX_LIFETIME", 5*time.Minute),
		SSLMode:         getEnv("POSTGRES_SSL_MODE", "disable"),
	}

	brokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	cfg.Kafka = KafkaConfig{
		Enabled:          getEnvAsBool("KAFKA_ENABLED", true),
		Brokers:          strings.Split(brokers, ","),
		Topic:            getEnv("KAFKA_TOPIC_NOTIFICATIONS", "origin-events"),
		GroupID:          getEnv("KAFKA_GROUP_ID", "veil-aggregator"),
		ProducerRetries:  getEnvAsInt("KAFKA_PRODUCER_RETRIES", 3),
		ProducerTimeout:  getEnvAsDuration("KAFKA_PRODUCER_TIMEOUT", 10*time.Second),
		RequiredAcks:     getEnvAsInt("KAFKA_REQUIRED_ACKS", -1),
		CompressionType:  getEnv("KAFKA_COMPRESSION", "snappy"),
		IdempotentWrites: getEnvAsBool("KAFKA_IDEMPOTENT", true),
		MaxMessageBytes:  getEnvAsInt("KAFKA_MAX_MESSAGE_BYTES", 1000000),
		SessionTimeout:   getEnvAsDuration("KAFKA_SESSION_TIMEOUT", 30*time.Second),
		CommitInterval:   getEnvAsDuration("KAFKA_COMMIT_INTERVAL", time.Second),
	}

	cfg.Analytics = AnalyticsConfig{
		RecentWindowLimit: getEnvAsInt("ANALYTICS_RECENT_WINDOW_LIMIT", 1000),
		VisitorRatio:      getEnvAsFloat("ANALYTICS_VISITOR_RATIO", 0.7),
		TimeSeriesDays:    getEnvAsInt("ANALYTICS_TIME_SERIES_DAYS", 7),
		TopPagesLimit:     getEnvAsInt("ANALYTICS_TOP_PAGES_LIMIT", 5),
		RecomputeCoalesce: getEnvAsDuration("ANALYTICS_RECOMPUTE_COALESCE", 0),
		DemoDomain:        getEnv("ANALYTICS_DEMO_DOMAIN", "demo.veilstats.io"),
	}

	return cfg, nil
}

func (c *PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
