package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.HTTPPort)

	assert.Equal(t, "localhost", cfg.Postgres.Host)
	assert.Equal(t, "veil", cfg.Postgres.Database)
	assert.Equal(t, 25, cfg.Postgres.MaxOpenConns)

	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "origin-events", cfg.Kafka.Topic)

	assert.Equal(t, 1000, cfg.Analytics.RecentWindowLimit)
	assert.Equal(t, 0.7, cfg.Analytics.VisitorRatio)
	assert.Equal(t, 7, cfg.Analytics.TimeSeriesDays)
	assert.Equal(t, 5, cfg.Analytics.TopPagesLimit)
	assert.Equal(t, time.Duration(0), cfg.Analytics.RecomputeCoalesce)
	assert.Equal(t, "demo.veilstats.io", cfg.Analytics.DemoDomain)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("KAFKA_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ANALYTICS_RECENT_WINDOW_LIMIT", "250")
	t.Setenv("ANALYTICS_VISITOR_RATIO", "0.5")
	t.Setenv("ANALYTICS_RECOMPUTE_COALESCE", "200ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250, cfg.Analytics.RecentWindowLimit)
	assert.Equal(t, 0.5, cfg.Analytics.VisitorRatio)
	assert.Equal(t, 200*time.Millisecond, cfg.Analytics.RecomputeCoalesce)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POSTGRES_MAX_OPEN_CONNS", "lots")
	t.Setenv("KAFKA_ENABLED", "maybe")
	t.Setenv("ANALYTICS_VISITOR_RATIO", "most")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Postgres.MaxOpenConns)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, 0.7, cfg.Analytics.VisitorRatio)
}

func TestPostgresDSN(t *testing.T) {
	pg := PostgresConfig{
		Host:     "db",
		Port:     "5433",
		Database: "veil",
		Username: "veil",
		Password: "secret",
		SSLMode:  "disable",
	}
	assert.Equal(t,
		"host=db port=5433 user=veil password=secret dbname=veil sslmode=disable",
		pg.PostgresDSN())
}
