package store

import (
	"os"
	"strconv"
)

// RedisConfig holds connection settings for the Redis message store.
type RedisConfig struct {
	Addr       string `yaml:"addr"`        // Redis address, default "localhost:6379"
	Password   string `yaml:"password"`    // Redis password, default ""
	DB         int    `yaml:"db"`          // Redis database number, default 0
	Prefix     string `yaml:"prefix"`      // Key prefix, default "relay:chat:"
	MaxHistory int    `yaml:"max_history"` // Messages kept per channel, 0 keeps all
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:       "localhost:6379",
		Prefix:     "relay:chat:",
		MaxHistory: 1000,
	}
}

// RedisConfigFromEnv loads Redis configuration from environment variables.
// Falls back to defaults for any missing values.
func RedisConfigFromEnv() *RedisConfig {
	cfg := DefaultRedisConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overrides fields from REDIS_* environment variables.
func (cfg *RedisConfig) ApplyEnv() {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Password = pw
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			cfg.DB = db
		}
	}
	if prefix := os.Getenv("REDIS_CHAT_PREFIX"); prefix != "" {
		cfg.Prefix = prefix
	}
	if maxStr := os.Getenv("REDIS_CHAT_MAX_HISTORY"); maxStr != "" {
		if n, err := strconv.Atoi(maxStr); err == nil && n >= 0 {
			cfg.MaxHistory = n
		}
	}
}
