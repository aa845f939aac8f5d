// Package server assembles the backend: configuration, logging,
// metrics, the terminal session manager, the WebSocket hub, and the
// Gin router for the command surface.
package server
