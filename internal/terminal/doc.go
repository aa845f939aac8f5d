// Package terminal multiplexes PTY-backed shell sessions for the
// desktop front-end.
//
// Each session couples one pseudo-terminal pair with a spawned shell
// process and a background output forwarder. Sessions are keyed by
// caller-supplied opaque ids in a mutex-guarded registry owned by the
// Manager; there is no global state.
//
// Architecture:
//   - Session: one PTY master handle (acquired once, reused for all
//     writes) plus the child process and current window size
//   - Registry: insert-if-absent / get / remove under a single mutex
//   - Manager: the command surface (Create, Write, Resize, Destroy)
//     invoked by HTTP handlers
//   - forwarder: one goroutine per session draining master output and
//     pushing {session id, bytes} events through an Emitter
//
// Lifecycle: Create registers the session and starts its forwarder.
// The forwarder runs until end-of-stream (child exited, an exit event
// is emitted and the entry cleaned up) or until Destroy closes the
// master fd out from under the pending read. After Destroy returns,
// no further events are emitted for that id.
//
// Failures are a closed set of sentinels (ErrDuplicateSession,
// ErrSessionNotFound, ErrInvalidSessionID, ErrSpawnFailed,
// ErrWriteFailed, ErrResizeFailed) wrapped with their cause, so
// callers branch with errors.Is.
package terminal
