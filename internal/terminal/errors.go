package terminal

import "errors"

// Typed failure kinds for session operations. Callers branch on these
// with errors.Is; OS-level causes are wrapped alongside the sentinel.
var (
	// ErrDuplicateSession is returned by Create when the id is already
	// bound to a live session.
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrSessionNotFound is returned by operations on ids that are not
	// registered, or that were destroyed while the call was in flight.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID is returned by Create when the id fails
	// validation. Ids are caller-supplied and must be non-empty.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrSpawnFailed is returned when the OS cannot allocate a PTY or
	// start the shell process.
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrWriteFailed is returned when input cannot be delivered to the
	// PTY master, including writes that exceed the write deadline.
	ErrWriteFailed = errors.New("write failed")

	// ErrResizeFailed is returned when the OS rejects a window size
	// change on the PTY.
	ErrResizeFailed = errors.New("resize failed")
)
