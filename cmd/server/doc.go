// Command server runs the desktop-shell backend: PTY session
// management over HTTP with a WebSocket output stream.
package main
