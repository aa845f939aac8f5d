// Package monitoring provides Prometheus metrics for HTTP traffic,
// terminal sessions, and WebSocket clients, exposed at /metrics.
package monitoring
