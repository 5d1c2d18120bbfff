// internal/config/config.go
package config

import (
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"
)

// DefaultServerVersion is the client build the relay expects when no override is set.
const DefaultServerVersion = "0.1.8-MULTIPLAYER"

// DefaultQueueName is the Redis list match results are pushed onto.
const DefaultQueueName = "pvprelay_matches"

// Config holds the process settings read from the environment.
type Config struct {
	Port          string
	LogLevel      string
	ServerVersion string

	// OutboxSize is the per-connection outbound buffer length.
	OutboxSize int

	// RedisAddr enables match-result publishing when non-empty.
	RedisAddr string
	RedisDB   int
	QueueName string
}

// Load reads the configuration from environment variables (a .env file is
// loaded automatically if present).
func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8788"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		ServerVersion: getEnv("SERVER_VERSION", DefaultServerVersion),
		OutboxSize:    getEnvInt("OUTBOX_SIZE", 64),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		QueueName:     getEnv("HISTORIAN_QUEUE_NAME", DefaultQueueName),
	}
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return ":" + c.Port
}

// getEnv reads an environment variable or returns def.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as an integer, else returns def.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
