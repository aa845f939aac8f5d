package terminal

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openchat/openchat-pc/backend/internal/logging"
)

const testShell = "/bin/sh"

// recordEmitter accumulates events per session for assertions.
type recordEmitter struct {
	mu      sync.Mutex
	outputs map[string][]byte
	exits   map[string]bool
}

func newRecordEmitter() *recordEmitter {
	return &recordEmitter{
		outputs: make(map[string][]byte),
		exits:   make(map[string]bool),
	}
}

func (e *recordEmitter) Output(id string, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.outputs[id] = append(e.outputs[id], data...)
}

func (e *recordEmitter) Exit(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exits[id] = true
}

func (e *recordEmitter) output(id string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]byte, len(e.outputs[id]))
	copy(out, e.outputs[id])
	return out
}

func (e *recordEmitter) exited(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exits[id]
}

func newTestManager(t *testing.T, emitter Emitter) *Manager {
	t.Helper()
	m := NewManager(emitter, logging.NewNop(), Options{DefaultShell: testShell})
	t.Cleanup(m.Shutdown)
	return m
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestCreateDuplicateSession(t *testing.T) {
	m := newTestManager(t, NopEmitter{})

	require.NoError(t, m.Create("term-1", CreateOptions{}))

	err := m.Create("term-1", CreateOptions{})
	assert.ErrorIs(t, err, ErrDuplicateSession)
	assert.Equal(t, 1, m.Count())
}

func TestCreateRequiresID(t *testing.T) {
	m := newTestManager(t, NopEmitter{})
	assert.ErrorIs(t, m.Create("", CreateOptions{}), ErrInvalidSessionID)
}

func TestCreateSpawnFailure(t *testing.T) {
	m := newTestManager(t, NopEmitter{})

	err := m.Create("term-1", CreateOptions{Shell: "/nonexistent/shell"})
	assert.ErrorIs(t, err, ErrSpawnFailed)

	// The failed spawn must not leave a registry entry behind.
	assert.Equal(t, 0, m.Count())
}

func TestOperationsOnUnknownSession(t *testing.T) {
	m := newTestManager(t, NopEmitter{})

	assert.ErrorIs(t, m.Write("ghost", []byte("ls\n")), ErrSessionNotFound)
	assert.ErrorIs(t, m.Resize("ghost", 100, 30), ErrSessionNotFound)

	_, err := m.Get("ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestDestroyIsIdempotent(t *testing.T) {
	m := newTestManager(t, NopEmitter{})

	assert.NoError(t, m.Destroy("never-existed"))

	require.NoError(t, m.Create("term-1", CreateOptions{}))
	assert.NoError(t, m.Destroy("term-1"))
	assert.NoError(t, m.Destroy("term-1"))
	assert.Equal(t, 0, m.Count())
}

func TestEchoRoundTrip(t *testing.T) {
	emitter := newRecordEmitter()
	m := newTestManager(t, emitter)

	require.NoError(t, m.Create("term-1", CreateOptions{}))
	require.NoError(t, m.Write("term-1", []byte("echo round_trip_marker\n")))

	ok := waitFor(5*time.Second, func() bool {
		return bytes.Contains(emitter.output("term-1"), []byte("round_trip_marker"))
	})
	assert.True(t, ok, "expected shell output to reach the emitter")
}

func TestResizeIdempotent(t *testing.T) {
	m := newTestManager(t, NopEmitter{})
	require.NoError(t, m.Create("term-1", CreateOptions{}))

	require.NoError(t, m.Resize("term-1", 120, 40))
	require.NoError(t, m.Resize("term-1", 120, 40))

	info, err := m.Get("term-1")
	require.NoError(t, err)
	assert.Equal(t, uint16(120), info.Cols)
	assert.Equal(t, uint16(40), info.Rows)
}

func TestDefaultSize(t *testing.T) {
	m := newTestManager(t, NopEmitter{})
	require.NoError(t, m.Create("term-1", CreateOptions{}))

	info, err := m.Get("term-1")
	require.NoError(t, err)
	assert.Equal(t, uint16(80), info.Cols)
	assert.Equal(t, uint16(24), info.Rows)
}

func TestDestroyStopsOutput(t *testing.T) {
	emitter := newRecordEmitter()
	m := newTestManager(t, emitter)

	require.NoError(t, m.Create("term-1", CreateOptions{}))
	require.NoError(t, m.Write("term-1", []byte("yes\n")))

	// Wait until the child is demonstrably producing output.
	require.True(t, waitFor(5*time.Second, func() bool {
		return len(emitter.output("term-1")) > 0
	}))

	require.NoError(t, m.Destroy("term-1"))
	snapshot := len(emitter.output("term-1"))

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, snapshot, len(emitter.output("term-1")),
		"no output events may follow destroy")
	assert.False(t, emitter.exited("term-1"),
		"destroy must not emit an exit event")
}

func TestWriteAfterDestroy(t *testing.T) {
	m := newTestManager(t, NopEmitter{})
	require.NoError(t, m.Create("term-1", CreateOptions{}))
	require.NoError(t, m.Destroy("term-1"))

	assert.ErrorIs(t, m.Write("term-1", []byte("ls\n")), ErrSessionNotFound)
	assert.ErrorIs(t, m.Resize("term-1", 100, 30), ErrSessionNotFound)
}

func TestSessionIsolation(t *testing.T) {
	emitter := newRecordEmitter()
	m := newTestManager(t, emitter)

	require.NoError(t, m.Create("term-a", CreateOptions{}))
	require.NoError(t, m.Create("term-b", CreateOptions{}))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = m.Write("term-a", []byte("echo alpha_marker\n"))
	}()
	go func() {
		defer wg.Done()
		_ = m.Write("term-b", []byte("echo beta_marker\n"))
	}()
	wg.Wait()

	require.True(t, waitFor(5*time.Second, func() bool {
		return bytes.Contains(emitter.output("term-a"), []byte("alpha_marker")) &&
			bytes.Contains(emitter.output("term-b"), []byte("beta_marker"))
	}))

	assert.NotContains(t, string(emitter.output("term-a")), "beta_marker")
	assert.NotContains(t, string(emitter.output("term-b")), "alpha_marker")
}

func TestSequentialWritesPreserveOrder(t *testing.T) {
	emitter := newRecordEmitter()
	m := newTestManager(t, emitter)

	// cat loops stdin back to stdout, so forwarded output mirrors the
	// order bytes were written.
	require.NoError(t, m.Create("term-1", CreateOptions{Shell: "/bin/cat"}))
	require.NoError(t, m.Write("term-1", []byte("first_chunk\n")))
	require.NoError(t, m.Write("term-1", []byte("second_chunk\n")))

	require.True(t, waitFor(5*time.Second, func() bool {
		out := emitter.output("term-1")
		return bytes.Contains(out, []byte("first_chunk")) &&
			bytes.Contains(out, []byte("second_chunk"))
	}))

	out := emitter.output("term-1")
	assert.Less(t,
		bytes.Index(out, []byte("first_chunk")),
		bytes.Index(out, []byte("second_chunk")),
		"output must preserve write order")
}

func TestBinaryRoundTrip(t *testing.T) {
	emitter := newRecordEmitter()
	m := newTestManager(t, emitter)

	require.NoError(t, m.Create("term-1", CreateOptions{}))

	// Raw mode disables the line discipline so control bytes pass
	// through untouched; cat then loops input straight back.
	require.NoError(t, m.Write("term-1", []byte("stty raw -echo; cat\n")))

	// The command line is echoed as soon as it is written; once it has
	// come back the shell is about to apply raw mode. The short sleep
	// covers the gap between the echo and stty taking effect.
	require.True(t, waitFor(5*time.Second, func() bool {
		return bytes.Contains(emitter.output("term-1"), []byte("cat"))
	}))
	time.Sleep(200 * time.Millisecond)

	// NUL, ESC, DEL, high bytes, and an invalid UTF-8 sequence.
	payload := []byte{0x00, 0x01, 0x1b, 0x80, 0xfe, 0xff, 0x7f, 'A', 0x0b, 0xc3, 0x28}
	base := len(emitter.output("term-1"))
	require.NoError(t, m.Write("term-1", payload))

	require.True(t, waitFor(5*time.Second, func() bool {
		return bytes.Contains(emitter.output("term-1")[base:], payload)
	}), "expected the exact byte sequence back, in order")
}

func TestExitEventOnShellExit(t *testing.T) {
	emitter := newRecordEmitter()
	m := newTestManager(t, emitter)

	require.NoError(t, m.Create("term-1", CreateOptions{}))
	require.NoError(t, m.Write("term-1", []byte("exit\n")))

	require.True(t, waitFor(5*time.Second, func() bool {
		return emitter.exited("term-1")
	}), "expected an exit event after the shell terminated")

	// Cleanup removes the registry entry; subsequent calls see
	// session-not-found.
	require.True(t, waitFor(time.Second, func() bool {
		return m.Count() == 0
	}))
	assert.ErrorIs(t, m.Write("term-1", []byte("ls\n")), ErrSessionNotFound)
}

func TestConcurrentCreateSameID(t *testing.T) {
	m := newTestManager(t, NopEmitter{})

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.Create("contended", CreateOptions{})
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, duplicates int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, ErrDuplicateSession)
			duplicates++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, duplicates)
	assert.Equal(t, 1, m.Count())
}

func TestShutdownDestroysAll(t *testing.T) {
	m := NewManager(NopEmitter{}, logging.NewNop(), Options{DefaultShell: testShell})

	require.NoError(t, m.Create("a", CreateOptions{}))
	require.NoError(t, m.Create("b", CreateOptions{}))
	require.Equal(t, 2, m.Count())

	m.Shutdown()
	assert.Equal(t, 0, m.Count())
}
