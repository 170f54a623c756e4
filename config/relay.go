package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hay-kot/criterio"
	"github.com/orchestra-mcp/relay/src/store"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// StoreConfig selects and configures the message store.
type StoreConfig struct {
	Driver     string             `yaml:"driver"`
	SQLitePath string             `yaml:"sqlite_path"`
	Redis      *store.RedisConfig `yaml:"redis"`
}

// RelayConfig holds WebSocket relay server configuration.
type RelayConfig struct {
	Addr            string      `yaml:"addr"`
	WSPath          string      `yaml:"ws_path"`
	MaxConnections  int         `yaml:"max_connections"`
	PingInterval    int         `yaml:"ping_interval_seconds"`
	WriteTimeout    int         `yaml:"write_timeout_seconds"`
	ReadBufferSize  int         `yaml:"read_buffer_size"`
	WriteBufferSize int         `yaml:"write_buffer_size"`
	MaxFrameBytes   int64       `yaml:"max_frame_bytes"`
	SendBuffer      int         `yaml:"send_buffer"`
	HistoryLimit    int         `yaml:"history_limit"`
	Scope           string      `yaml:"scope"`
	Acks            bool        `yaml:"acks"`
	LogLevel        string      `yaml:"log_level"`
	Store           StoreConfig `yaml:"store"`
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() *RelayConfig {
	return &RelayConfig{
		Addr:            ":8080",
		WSPath:          "/ws",
		MaxConnections:  1000,
		PingInterval:    30,
		WriteTimeout:    10,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		MaxFrameBytes:   64 * 1024,
		SendBuffer:      256,
		HistoryLimit:    store.DefaultRecentLimit,
		Scope:           "global",
		LogLevel:        "info",
		Store: StoreConfig{
			Driver:     DriverMemory,
			SQLitePath: "relay.db",
			Redis:      store.DefaultRedisConfig(),
		},
	}
}

// Load reads configuration from path over the defaults, then applies RELAY_*
// and REDIS_* environment overrides. A missing or empty path uses defaults.
func Load(path string) (*RelayConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}
	if cfg.Store.Redis == nil {
		cfg.Store.Redis = store.DefaultRedisConfig()
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. Unparseable numbers
// and booleans are ignored.
func (c *RelayConfig) ApplyEnv() {
	if v := os.Getenv("RELAY_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("RELAY_WS_PATH"); v != "" {
		c.WSPath = v
	}
	envInt("RELAY_MAX_CONNECTIONS", &c.MaxConnections)
	envInt("RELAY_PING_INTERVAL", &c.PingInterval)
	envInt("RELAY_WRITE_TIMEOUT", &c.WriteTimeout)
	envInt("RELAY_SEND_BUFFER", &c.SendBuffer)
	envInt("RELAY_HISTORY_LIMIT", &c.HistoryLimit)
	if v := os.Getenv("RELAY_SCOPE"); v != "" {
		c.Scope = strings.ToLower(v)
	}
	if v := os.Getenv("RELAY_ACKS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Acks = b
		}
	}
	if v := os.Getenv("RELAY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("RELAY_STORE"); v != "" {
		c.Store.Driver = strings.ToLower(v)
	}
	if v := os.Getenv("RELAY_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if c.Store.Redis == nil {
		c.Store.Redis = store.DefaultRedisConfig()
	}
	c.Store.Redis.ApplyEnv()
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

// PingPeriod returns the keepalive ping interval.
func (c *RelayConfig) PingPeriod() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

// WriteWait returns the per-frame write deadline.
func (c *RelayConfig) WriteWait() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

// PongWait returns how long a connection may stay silent before it is
// considered dead. It is always longer than the ping interval.
func (c *RelayConfig) PongWait() time.Duration {
	return c.PingPeriod() * 10 / 9
}

// Validate checks the configuration and returns criterio.FieldErrors on
// failure.
func (c *RelayConfig) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.Addr == "" {
		errs = errs.Append("addr", errors.New("cannot be empty"))
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		errs = errs.Append("ws_path", fmt.Errorf("must start with /, got %q", c.WSPath))
	}
	if c.MaxConnections < 1 {
		errs = errs.Append("max_connections", errors.New("must be at least 1"))
	}
	if c.PingInterval < 1 {
		errs = errs.Append("ping_interval_seconds", errors.New("must be at least 1"))
	}
	if c.WriteTimeout < 1 {
		errs = errs.Append("write_timeout_seconds", errors.New("must be at least 1"))
	}
	if c.ReadBufferSize < 1 || c.WriteBufferSize < 1 {
		errs = errs.Append("read_buffer_size", errors.New("buffer sizes must be positive"))
	}
	if c.MaxFrameBytes < 1 {
		errs = errs.Append("max_frame_bytes", errors.New("must be positive"))
	}
	if c.SendBuffer < 1 {
		errs = errs.Append("send_buffer", errors.New("must be at least 1"))
	}
	if c.HistoryLimit < 1 || c.HistoryLimit > store.MaxRecentLimit {
		errs = errs.Append("history_limit", fmt.Errorf("must be between 1 and %d", store.MaxRecentLimit))
	}
	if c.Scope != "global" && c.Scope != "channel" {
		errs = errs.Append("scope", fmt.Errorf("unknown scope %q", c.Scope))
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			errs = errs.Append("store.sqlite_path", errors.New("required for sqlite driver"))
		}
	case DriverRedis:
		if c.Store.Redis == nil || c.Store.Redis.Addr == "" {
			errs = errs.Append("store.redis.addr", errors.New("required for redis driver"))
		} else if c.Store.Redis.MaxHistory < 0 {
			errs = errs.Append("store.redis.max_history", errors.New("cannot be negative"))
		}
	default:
		errs = errs.Append("store.driver", fmt.Errorf("unknown driver %q", c.Store.Driver))
	}

	return errs.ToError()
}
