// Package config provides 12-factor configuration for the guest host.
//
// Configuration is loaded from environment variables with defaults. CLI
// flags in cmd/server override the listen address.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: log level and output format
//   - Guest: embedder preferences, capability overrides, headless surface limits
//   - WebSocket: per-connection read limit and message rate
//   - RateLimit: per-IP HTTP rate limiting
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - GUEST_EMBEDDER_PREFERENCES, GUEST_CAPABILITIES_FILE, GUEST_USER_AGENT
//   - GUEST_CAPTURE_WIDTH, GUEST_CAPTURE_HEIGHT, GUEST_LOAD_TIMEOUT, GUEST_SCRIPT_TIMEOUT
//   - WS_READ_LIMIT, WS_MESSAGES_PER_SECOND, WS_BURST
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
