package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Guest config
	assert.Empty(t, cfg.Guest.EmbedderPreferences)
	assert.Equal(t, 800, cfg.Guest.CaptureWidth)
	assert.Equal(t, 600, cfg.Guest.CaptureHeight)
	assert.Equal(t, 30*time.Second, cfg.Guest.LoadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Guest.ScriptTimeout)

	// WebSocket config
	assert.Equal(t, int64(1<<20), cfg.WebSocket.ReadLimit)
	assert.Equal(t, 50, cfg.WebSocket.MessagesPerSecond)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadMatchesDefault(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                       "9000",
		"HOST":                       "127.0.0.1",
		"LOG_LEVEL":                  "debug",
		"LOG_DEV":                    "true",
		"GUEST_EMBEDDER_PREFERENCES": "webviewTag=no,contextIsolation=yes",
		"GUEST_CAPABILITIES_FILE":    "/etc/guesthost/capabilities.yaml",
		"GUEST_CAPTURE_WIDTH":        "1280",
		"GUEST_CAPTURE_HEIGHT":       "720",
		"GUEST_LOAD_TIMEOUT":         "10s",
		"GUEST_SCRIPT_TIMEOUT":       "250ms",
		"GUEST_ALLOWED_HOSTS":        "*.example.com,localhost",
		"GUEST_BREAKER_THRESHOLD":    "3",
		"GUEST_BREAKER_COOLDOWN":     "1m",
		"WS_MESSAGES_PER_SECOND":     "5",
		"RATE_LIMIT_RPS":             "500",
		"RATE_LIMIT_BURST":           "1000",
		"RATE_LIMIT_ENABLED":         "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, "webviewTag=no,contextIsolation=yes", cfg.Guest.EmbedderPreferences)
	assert.Equal(t, "/etc/guesthost/capabilities.yaml", cfg.Guest.CapabilitiesFile)
	assert.Equal(t, 1280, cfg.Guest.CaptureWidth)
	assert.Equal(t, 720, cfg.Guest.CaptureHeight)
	assert.Equal(t, 10*time.Second, cfg.Guest.LoadTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Guest.ScriptTimeout)
	assert.Equal(t, []string{"*.example.com", "localhost"}, cfg.Guest.AllowedHosts)
	assert.Equal(t, 3, cfg.Guest.BreakerThreshold)
	assert.Equal(t, time.Minute, cfg.Guest.BreakerCooldown)
	assert.Equal(t, 5, cfg.WebSocket.MessagesPerSecond)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non-numeric rate", key: "RATE_LIMIT_RPS", value: "fast"},
		{name: "bad duration", key: "GUEST_LOAD_TIMEOUT", value: "soon"},
		{name: "zero capture width", key: "GUEST_CAPTURE_WIDTH", value: "0"},
		{name: "bad host pattern", key: "GUEST_ALLOWED_HOSTS", value: "[a-"},
		{name: "zero breaker threshold", key: "GUEST_BREAKER_THRESHOLD", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)

			// LoadOrDefault falls back instead of failing
			assert.Equal(t, Default(), LoadOrDefault())
		})
	}
}

func TestServerConfig(t *testing.T) {
	tests := []struct {
		name     string
		port     string
		host     string
		wantPort string
		wantHost string
	}{
		{name: "default values", wantPort: "8000", wantHost: "0.0.0.0"},
		{name: "custom port", port: "9000", wantPort: "9000", wantHost: "0.0.0.0"},
		{name: "custom host", host: "localhost", wantPort: "8000", wantHost: "localhost"},
		{name: "custom port and host", port: "3000", host: "127.0.0.1", wantPort: "3000", wantHost: "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.port != "" {
				t.Setenv("PORT", tt.port)
			}
			if tt.host != "" {
				t.Setenv("HOST", tt.host)
			}

			cfg := LoadOrDefault()

			assert.Equal(t, tt.wantPort, cfg.Server.Port)
			assert.Equal(t, tt.wantHost, cfg.Server.Host)
		})
	}
}
