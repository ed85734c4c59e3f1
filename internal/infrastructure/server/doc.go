// Package server wires the guest host together: configuration, logging,
// metrics, tracing, the headless surface factory, the guest registry, the message
// gateway and the HTTP and WebSocket routes.
package server
