package config

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Guest     GuestConfig
	WebSocket WebSocketConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// GuestConfig holds guest surface configuration.
type GuestConfig struct {
	// EmbedderPreferences is a features string applied to every remote
	// embedder, e.g. "webviewTag=yes,contextIsolation=yes".
	EmbedderPreferences string        `envconfig:"GUEST_EMBEDDER_PREFERENCES" default:""`
	CapabilitiesFile    string        `envconfig:"GUEST_CAPABILITIES_FILE" default:""`
	UserAgent           string        `envconfig:"GUEST_USER_AGENT" default:"guesthost/1.0"`
	CaptureWidth        int           `envconfig:"GUEST_CAPTURE_WIDTH" default:"800"`
	CaptureHeight       int           `envconfig:"GUEST_CAPTURE_HEIGHT" default:"600"`
	LoadTimeout         time.Duration `envconfig:"GUEST_LOAD_TIMEOUT" default:"30s"`
	ScriptTimeout       time.Duration `envconfig:"GUEST_SCRIPT_TIMEOUT" default:"5s"`
	// AllowedHosts are glob patterns, e.g. "*.example.com,localhost".
	AllowedHosts     []string      `envconfig:"GUEST_ALLOWED_HOSTS"`
	BreakerThreshold int           `envconfig:"GUEST_BREAKER_THRESHOLD" default:"5"`
	BreakerCooldown  time.Duration `envconfig:"GUEST_BREAKER_COOLDOWN" default:"30s"`
}

// WebSocketConfig holds embedder connection configuration.
type WebSocketConfig struct {
	ReadLimit         int64 `envconfig:"WS_READ_LIMIT" default:"1048576"`
	MessagesPerSecond int   `envconfig:"WS_MESSAGES_PER_SECOND" default:"50"`
	Burst             int   `envconfig:"WS_BURST" default:"100"`
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Guest.CaptureWidth <= 0 || cfg.Guest.CaptureHeight <= 0 {
		return nil, fmt.Errorf("invalid capture size %dx%d", cfg.Guest.CaptureWidth, cfg.Guest.CaptureHeight)
	}
	if cfg.Guest.BreakerThreshold <= 0 {
		return nil, fmt.Errorf("invalid breaker threshold %d", cfg.Guest.BreakerThreshold)
	}
	for _, pattern := range cfg.Guest.AllowedHosts {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid allowed host pattern %q", pattern)
		}
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level: "info",
		},
		Guest: GuestConfig{
			UserAgent:        "guesthost/1.0",
			CaptureWidth:     800,
			CaptureHeight:    600,
			LoadTimeout:      30 * time.Second,
			ScriptTimeout:    5 * time.Second,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			ReadLimit:         1 << 20,
			MessagesPerSecond: 50,
			Burst:             100,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
