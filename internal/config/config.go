package config

import (
	"os"
	"strings"
	"time"

	"github.com/cookiedrop/kitchenhub/internal/logging"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig   `json:"server" yaml:"server"`
	Hub     HubConfig      `json:"hub" yaml:"hub"`
	Auth    AuthConfig     `json:"auth" yaml:"auth"`
	Redis   RedisConfig    `json:"redis" yaml:"redis"`
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// ServerConfig represents HTTP and WebSocket server configuration
type ServerConfig struct {
	Host         string        `json:"host" yaml:"host"`
	Port         int           `json:"port" yaml:"port"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// WebSocketPath is where kitchen consoles and storefront tabs connect
	WebSocketPath string `json:"websocket_path" yaml:"websocket_path"`

	// MaxMessageSize caps a single client frame in bytes
	MaxMessageSize int64 `json:"max_message_size" yaml:"max_message_size"`

	// SendBufferSize is the per-connection outgoing queue depth
	SendBufferSize int `json:"send_buffer_size" yaml:"send_buffer_size"`

	// AllowedOrigins restricts browser upgrades to these origins. Empty
	// means same-origin only.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// APIKeyEnv names the environment variable holding the push API key.
	// The push API is unauthenticated when the variable is empty.
	APIKeyEnv string `json:"api_key_env" yaml:"api_key_env"`
}

// APIKey returns the push API key resolved from the environment
func (s ServerConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// HubConfig controls connection liveness
type HubConfig struct {
	// PingInterval is how often the ping sweep runs
	PingInterval time.Duration `json:"ping_interval" yaml:"ping_interval"`

	// IdleThreshold is how long a connection may stay quiet before it is pinged
	IdleThreshold time.Duration `json:"idle_threshold" yaml:"idle_threshold"`

	// PongTimeout evicts a connection that has been quiet this long
	PongTimeout time.Duration `json:"pong_timeout" yaml:"pong_timeout"`

	// CleanupInterval is how often the stale-connection sweep runs
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`

	// StaleTimeout is the backstop eviction threshold of the cleanup sweep
	StaleTimeout time.Duration `json:"stale_timeout" yaml:"stale_timeout"`
}

// AuthConfig controls socket authentication
type AuthConfig struct {
	// SecretEnv names the environment variable holding the HS256 signing secret
	SecretEnv string `json:"secret_env" yaml:"secret_env"`

	// Issuer, when set, must match the iss claim
	Issuer string `json:"issuer" yaml:"issuer"`
}

// Secret returns the signing secret resolved from the environment
func (a AuthConfig) Secret() string {
	if a.SecretEnv == "" {
		return ""
	}
	return os.Getenv(a.SecretEnv)
}

// RedisConfig configures the back-office event relay
type RedisConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Channel  string `json:"channel" yaml:"channel"`
}

// Default values
const (
	DefaultPort            = 3000
	DefaultWebSocketPath   = "/ws"
	DefaultPingInterval    = 30 * time.Second
	DefaultIdleThreshold   = 30 * time.Second
	DefaultPongTimeout     = 60 * time.Second
	DefaultCleanupInterval = 60 * time.Second
	DefaultStaleTimeout    = 5 * time.Minute
	DefaultRedisChannel    = "kitchenhub:events"
)

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "localhost",
			Port:           DefaultPort,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    120 * time.Second,
			WebSocketPath:  DefaultWebSocketPath,
			MaxMessageSize: 64 * 1024,
			SendBufferSize: 256,
			APIKeyEnv:      "KITCHENHUB_API_KEY",
		},
		Hub: HubConfig{
			PingInterval:    DefaultPingInterval,
			IdleThreshold:   DefaultIdleThreshold,
			PongTimeout:     DefaultPongTimeout,
			CleanupInterval: DefaultCleanupInterval,
			StaleTimeout:    DefaultStaleTimeout,
		},
		Auth: AuthConfig{
			SecretEnv: "KITCHENHUB_JWT_SECRET",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: DefaultRedisChannel,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.ReadTimeout < 0 {
		return NewConfigError("server.read_timeout", "timeout cannot be negative")
	}

	if c.Server.WriteTimeout < 0 {
		return NewConfigError("server.write_timeout", "timeout cannot be negative")
	}

	if !strings.HasPrefix(c.Server.WebSocketPath, "/") {
		return NewConfigError("server.websocket_path", "path must start with /")
	}

	if c.Server.MaxMessageSize <= 0 {
		return NewConfigError("server.max_message_size", "must be positive")
	}

	if c.Server.SendBufferSize <= 0 {
		return NewConfigError("server.send_buffer_size", "must be positive")
	}

	if c.Hub.PingInterval <= 0 {
		return NewConfigError("hub.ping_interval", "must be positive")
	}

	if c.Hub.IdleThreshold <= 0 {
		return NewConfigError("hub.idle_threshold", "must be positive")
	}

	if c.Hub.PongTimeout <= c.Hub.IdleThreshold {
		return NewConfigError("hub.pong_timeout", "must be greater than hub.idle_threshold")
	}

	if c.Hub.CleanupInterval <= 0 {
		return NewConfigError("hub.cleanup_interval", "must be positive")
	}

	if c.Hub.StaleTimeout < c.Hub.PongTimeout {
		return NewConfigError("hub.stale_timeout", "must not be less than hub.pong_timeout")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return NewConfigError("redis.addr", "address is required when redis is enabled")
		}
		if c.Redis.Channel == "" {
			return NewConfigError("redis.channel", "channel is required when redis is enabled")
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text", "pretty", "":
	default:
		return NewConfigError("logging.format", "unknown format, want json|text|pretty")
	}

	return nil
}
