// Package http provides the HTTP routes of the guest host: liveness and
// health probes, read-only guest registry views and Prometheus metrics.
package http
