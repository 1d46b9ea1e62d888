package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("JWT_SIGNING_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, devJWTSigningKey, cfg.Auth.JWTSigningKey)
	assert.Equal(t, 600*time.Second, cfg.Cache.Transfer)
	assert.Equal(t, 300*time.Second, cfg.Cache.List)
	assert.Equal(t, 900*time.Second, cfg.Cache.History)
	assert.Equal(t, 1200*time.Second, cfg.Cache.District)
	assert.Equal(t, 1800*time.Second, cfg.Cache.Stats)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
	assert.False(t, cfg.Kafka.Enabled())
	assert.False(t, cfg.Storage.Enabled())
	assert.False(t, cfg.Queue.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LAND_ADMIN_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092 ,")
	t.Setenv("CACHE_TTL_STATS", "60")
	t.Setenv("CACHE_TTL_LIST", "not-a-number")
	t.Setenv("DB_TX_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, time.Minute, cfg.Cache.Stats)
	assert.Equal(t, 300*time.Second, cfg.Cache.List, "unparseable values fall back")
	assert.Equal(t, 2*time.Second, cfg.Database.TxTimeout)
}

func TestLoadRequiresSigningKeyInProduction(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SIGNING_KEY", "")

	_, err := Load()
	require.Error(t, err)
}
