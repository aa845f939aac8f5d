// Package ws implements the push channel to the desktop front-end.
//
// Terminal output cannot be pulled request/response: the shell
// produces bytes whenever it pleases, independent of any command the
// front-end issued. The Hub therefore streams events over a
// WebSocket:
//
//	{"type":"output","session_id":"...","data":"<base64>"}
//	{"type":"exit","session_id":"..."}
//
// The Hub implements terminal.Emitter. Broadcasts never block: each
// client has a bounded queue and slow consumers lose events rather
// than stalling session forwarders. Per-session event order is
// preserved within each client's queue.
package ws
