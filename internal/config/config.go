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
	Port     string
	LogLevel string

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	Channel ChannelConfig

	WebhookVerifyToken string
	AllowedOrigins     []string
}

type ChannelConfig struct {
	StoreDialect       string
	StoreDSN           string
	ReconnectDelay     time.Duration
	DefaultCountryCode string
	AutoConnect        bool
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:                  getenv("PORT", "8080"),
		LogLevel:              strings.ToLower(getenv("LOG_LEVEL", "info")),
		MongoURI:              strings.TrimSpace(getenv("MONGODB_URI", "")),
		MongoDatabase:         getenv("MONGODB_DATABASE", "call_companion"),
		RedisAddr:             strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:         getenv("REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("REDIS_DB", 0),
		JWTSecret:             strings.TrimSpace(getenv("JWT_SECRET", "")),
		GoogleCredentialsFile: strings.TrimSpace(getenv("GOOGLE_CREDENTIALS_FILE", "")),
		GoogleCredentialsJSON: strings.TrimSpace(getenv("GOOGLE_CREDENTIALS_JSON", "")),
		Channel: ChannelConfig{
			StoreDialect:       strings.ToLower(getenv("CHANNEL_STORE_DIALECT", "sqlite")),
			StoreDSN:           getenv("CHANNEL_STORE_DSN", "file:channel_store.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"),
			ReconnectDelay:     getenvDuration("CHANNEL_RECONNECT_DELAY", 5*time.Second),
			DefaultCountryCode: strings.TrimPrefix(strings.TrimSpace(getenv("CHANNEL_DEFAULT_COUNTRY_CODE", "")), "+"),
			AutoConnect:        getenvBool("CHANNEL_AUTOCONNECT", true),
		},
		WebhookVerifyToken: strings.TrimSpace(getenv("WEBHOOK_VERIFY_TOKEN", "")),
		AllowedOrigins:     parseList(getenv("ALLOWED_ORIGINS", "*")),
	}
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

// getenvDuration accepts Go durations ("5s") or a plain number of seconds
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
