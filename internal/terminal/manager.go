package terminal

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openchat/openchat-pc/backend/internal/logging"
	"github.com/openchat/openchat-pc/backend/internal/monitoring"
)

// readBufSize is the chunk size for draining PTY output.
const readBufSize = 4096

// DefaultWriteTimeout bounds how long a Write may block on a full
// PTY transport before failing with ErrWriteFailed.
const DefaultWriteTimeout = 5 * time.Second

// Options configures a Manager.
type Options struct {
	// DefaultShell is spawned when Create is called without a shell
	// override. Empty means $SHELL, falling back to /bin/bash.
	DefaultShell string

	// WriteTimeout is the per-call deadline for Write. Zero means
	// DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// CreateOptions are the per-session knobs accepted by Create.
type CreateOptions struct {
	Shell      string
	WorkingDir string
	Env        map[string]string
}

// Manager is the session controller: it owns the registry, spawns
// shells on PTYs, and runs one output forwarder goroutine per live
// session. It is safe for concurrent use.
type Manager struct {
	registry     *Registry
	emitter      Emitter
	log          *logging.Logger
	metrics      *monitoring.Metrics
	defaultShell string
	writeTimeout time.Duration
	wg           sync.WaitGroup
}

// NewManager creates a session manager pushing output through emitter.
func NewManager(emitter Emitter, log *logging.Logger, opts Options) *Manager {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if log == nil {
		log = logging.NewDefault()
	}
	shell := opts.DefaultShell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/bash"
	}
	timeout := opts.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Manager{
		registry:     NewRegistry(),
		emitter:      emitter,
		log:          log,
		defaultShell: shell,
		writeTimeout: timeout,
	}
}

// WithMetrics attaches a metrics collector. Must be called before the
// manager is shared across goroutines.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Create spawns a shell on a fresh 80x24 PTY and registers it under
// the caller-supplied id, then starts the session's output forwarder.
func (m *Manager) Create(id string, opts CreateOptions) error {
	if id == "" {
		return fmt.Errorf("%w: id must not be empty", ErrInvalidSessionID)
	}

	// Fast-fail before paying for a spawn; the Insert below is the
	// authoritative duplicate check.
	if _, ok := m.registry.Get(id); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}

	shell := opts.Shell
	if shell == "" {
		shell = m.defaultShell
	}

	sess, err := newSession(id, shell, opts.WorkingDir, opts.Env)
	if err != nil {
		m.log.Error("session spawn failed",
			zap.String("session_id", id),
			zap.String("shell", shell),
			zap.Error(err))
		return err
	}

	if err := m.registry.Insert(sess); err != nil {
		// Lost a create race for the same id; tear down the spawn.
		if sess.markClosed() {
			sess.release(true)
		}
		return fmt.Errorf("%w: %s", err, id)
	}

	m.wg.Add(1)
	go m.forward(sess)

	m.log.Info("session created",
		zap.String("session_id", id),
		zap.String("shell", shell),
		zap.Int("pid", sess.cmd.Process.Pid))
	if m.metrics != nil {
		m.metrics.SessionStarted()
	}
	return nil
}

// Write delivers input bytes to the session's master end in call
// order. Fails with ErrSessionNotFound for unknown or destroyed ids
// and ErrWriteFailed on transport errors.
func (m *Manager) Write(id string, data []byte) error {
	s, ok := m.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err := s.write(data, m.writeTimeout); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.AddBytesWritten(len(data))
	}
	return nil
}

// Resize updates the PTY window size; the child is notified through
// the usual SIGWINCH path. Repeated identical resizes are no-ops at
// the OS level.
func (m *Manager) Resize(id string, cols, rows uint16) error {
	s, ok := m.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.resize(cols, rows)
}

// Destroy tears down a session: the child is terminated, the master
// end closed (promptly unblocking the forwarder), and the registry
// entry removed. Destroying an absent id is not an error.
func (m *Manager) Destroy(id string) error {
	s, ok := m.registry.Remove(id)
	if !ok {
		return nil
	}
	if s.markClosed() {
		s.release(true)
		m.log.Info("session destroyed", zap.String("session_id", id))
		if m.metrics != nil {
			m.metrics.SessionEnded()
		}
	}
	return nil
}

// Get returns a snapshot of the session bound to id.
func (m *Manager) Get(id string) (SessionInfo, error) {
	s, ok := m.registry.Get(id)
	if !ok {
		return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.info(), nil
}

// Sessions returns snapshots of all live sessions.
func (m *Manager) Sessions() []SessionInfo {
	live := m.registry.List()
	out := make([]SessionInfo, 0, len(live))
	for _, s := range live {
		out = append(out, s.info())
	}
	return out
}

// Count reports the number of live sessions.
func (m *Manager) Count() int {
	return m.registry.Len()
}

// Shutdown destroys all live sessions and waits for their forwarders
// to finish.
func (m *Manager) Shutdown() {
	for _, s := range m.registry.List() {
		_ = m.Destroy(s.ID)
	}
	m.wg.Wait()
}

// forward is the per-session output forwarder. It drains the master
// end until end-of-stream and pushes each chunk to the emitter tagged
// with the session id. The blocking read happens off all locks; only
// the emit itself is serialized with write/resize/teardown.
func (m *Manager) forward(s *Session) {
	defer m.wg.Done()

	buf := make([]byte, readBufSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			if !m.emit(s, data) {
				// Destroyed mid-read; teardown already ran.
				return
			}
		}
		if err != nil {
			m.sessionEnded(s)
			return
		}
	}
}

// emit pushes one output chunk unless the session has been closed.
// Holding s.mu across the closed-check and the emit guarantees no
// output event is delivered after Destroy returns.
func (m *Manager) emit(s *Session, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	m.emitter.Output(s.ID, data)
	if m.metrics != nil {
		m.metrics.AddBytesForwarded(len(data))
	}
	return true
}

// sessionEnded handles end-of-stream on the master: the child exited
// (or the fd was closed under us). If Destroy has not already run,
// clean up the registry entry, reap the child, and emit the terminal
// exit event.
func (m *Manager) sessionEnded(s *Session) {
	if !s.markClosed() {
		return
	}
	m.registry.RemoveSession(s.ID, s)
	s.release(false)
	m.emitter.Exit(s.ID)
	m.log.Info("session ended", zap.String("session_id", s.ID))
	if m.metrics != nil {
		m.metrics.SessionEnded()
	}
}
