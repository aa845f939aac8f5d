package terminal

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/creack/pty"
)

// Default dimensions for newly created sessions.
const (
	defaultCols uint16 = 80
	defaultRows uint16 = 24
)

// Session owns one PTY pair and the shell process attached to its
// slave end. The master handle is acquired once at creation and
// retained for the session's lifetime; all writes reuse it.
type Session struct {
	ID         string
	Shell      string
	WorkingDir string
	StartedAt  time.Time

	cmd  *exec.Cmd
	ptmx *os.File

	// mu serializes write/resize/teardown and the forwarder's event
	// emission against each other. The forwarder's blocking read does
	// NOT hold mu; only the post-read emit does.
	mu     sync.Mutex
	cols   uint16
	rows   uint16
	closed bool
}

// SessionInfo is the public snapshot of a session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Shell      string    `json:"shell"`
	WorkingDir string    `json:"working_dir"`
	Cols       uint16    `json:"cols"`
	Rows       uint16    `json:"rows"`
	StartedAt  time.Time `json:"started_at"`
	Active     bool      `json:"active"`
}

// newSession allocates a PTY at the default size and spawns the shell
// attached to its slave end.
func newSession(id, shell, workingDir string, env map[string]string) (*Session, error) {
	cmd := exec.Command(shell)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	for key, value := range env {
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: defaultRows,
		Cols: defaultCols,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	return &Session{
		ID:         id,
		Shell:      shell,
		WorkingDir: cmd.Dir,
		StartedAt:  time.Now(),
		cmd:        cmd,
		ptmx:       ptmx,
		cols:       defaultCols,
		rows:       defaultRows,
	}, nil
}

// write delivers input to the master end and returns once the bytes
// are handed to the OS. A deadline bounds blocking on a full transport
// so the caller gets ErrWriteFailed instead of a deadlock.
func (s *Session) write(data []byte, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}

	if timeout > 0 {
		_ = s.ptmx.SetWriteDeadline(time.Now().Add(timeout))
		defer s.ptmx.SetWriteDeadline(time.Time{})
	}

	if _, err := s.ptmx.Write(data); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// resize applies a new window size. Concurrent resizes are serialized
// by mu; the last one applied wins.
func (s *Session) resize(cols, rows uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}

	if err := pty.Setsize(s.ptmx, &pty.Winsize{Rows: rows, Cols: cols}); err != nil {
		return fmt.Errorf("%w: %v", ErrResizeFailed, err)
	}
	s.cols = cols
	s.rows = rows
	return nil
}

// markClosed flips the closed flag. Returns false if the session was
// already closed, so exactly one of Destroy or the end-of-stream path
// performs teardown.
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

// release closes the master end and reaps the child. Closing the fd
// unblocks a forwarder stuck in a read. Callers must win markClosed
// first.
func (s *Session) release(kill bool) {
	if kill && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.ptmx.Close()
	_ = s.cmd.Wait()
}

// info returns a consistent snapshot of the session's metadata.
func (s *Session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:         s.ID,
		Shell:      s.Shell,
		WorkingDir: s.WorkingDir,
		Cols:       s.cols,
		Rows:       s.rows,
		StartedAt:  s.StartedAt,
		Active:     !s.closed,
	}
}
