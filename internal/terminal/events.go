package terminal

// Emitter receives session output pushed by the background forwarders.
// Implementations must not block: forwarders call Output while holding
// the owning session's lock, so a stalled emitter would stall writes
// and resizes for that session.
type Emitter interface {
	// Output delivers a chunk of raw bytes produced by the session's
	// child process. The payload is opaque; it may contain partial
	// multi-byte sequences and control codes.
	Output(sessionID string, data []byte)

	// Exit signals that the session's child process ended on its own.
	// Not called for sessions torn down via Destroy.
	Exit(sessionID string)
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Output(string, []byte) {}

func (NopEmitter) Exit(string) {}
