// Package http exposes the command surface the desktop front-end
// invokes: session create/write/resize/destroy plus list, get, and
// health endpoints. Live output travels the other direction over the
// WebSocket push channel (see internal/ws).
package http
