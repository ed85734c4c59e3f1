// Package main is the entry point of the guest host server.
//
// The server manages embedded guest surfaces on behalf of remote
// embedders:
//
//	Embedder (WebSocket) → Message Gateway → Guest Registry → Headless Surfaces
//
// It provides:
//   - WebSocket endpoint for embedders (/ws)
//   - Read-only guest registry views (/guests)
//   - Health and Prometheus metrics (/health, /metrics)
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000
//
//	# Development mode (colored logs)
//	./server -dev
//
//	# Let embedders use guests with isolated contexts
//	GUEST_EMBEDDER_PREFERENCES="webviewTag=yes,contextIsolation=yes" ./server
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
