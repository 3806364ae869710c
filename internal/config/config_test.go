package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "LOG_LEVEL", "MONGODB_URI", "REDIS_ADDR", "CHANNEL_RECONNECT_DELAY", "CHANNEL_AUTOCONNECT", "ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.MongoURI)
	assert.Equal(t, 5*time.Second, cfg.Channel.ReconnectDelay)
	assert.True(t, cfg.Channel.AutoConnect)
	assert.Equal(t, "sqlite", cfg.Channel.StoreDialect)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CHANNEL_RECONNECT_DELAY", "12")
	t.Setenv("CHANNEL_AUTOCONNECT", "off")
	t.Setenv("CHANNEL_DEFAULT_COUNTRY_CODE", "+91")
	t.Setenv("CHANNEL_STORE_DIALECT", "Postgres")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://admin.example.com,")

	cfg := Load()
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 12*time.Second, cfg.Channel.ReconnectDelay)
	assert.False(t, cfg.Channel.AutoConnect)
	assert.Equal(t, "91", cfg.Channel.DefaultCountryCode)
	assert.Equal(t, "postgres", cfg.Channel.StoreDialect)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("X_DELAY", "1500ms")
	assert.Equal(t, 1500*time.Millisecond, getenvDuration("X_DELAY", time.Second))

	t.Setenv("X_DELAY", "nonsense")
	assert.Equal(t, time.Second, getenvDuration("X_DELAY", time.Second))
}
