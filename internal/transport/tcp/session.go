// Package tcp implements the line-oriented chat transport: the session
// wrapper around an accepted connection, the per-connection handler with
// its authentication state machine and command interpreter, and the
// listener lifecycle.
package tcp

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/beechat/beechat-server/internal/protocol"
)

// ErrSessionClosed is returned by writes after the session disconnected.
var ErrSessionClosed = errors.New("session closed")

// Session wraps one accepted connection with line-based read/write. Writes
// are flushed immediately and serialized by a mutex, so a private message
// and a concurrent broadcast cannot interleave on the wire. After
// Disconnect, reads and writes fail.
type Session struct {
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex
	closed  atomic.Bool

	nameMu sync.RWMutex
	name   string
}

// NewSession wraps an accepted connection.
func NewSession(conn net.Conn) *Session {
	return &Session{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Name returns the username assigned at authentication, or "" before it.
func (s *Session) Name() string {
	s.nameMu.RLock()
	defer s.nameMu.RUnlock()
	return s.name
}

// SetName assigns the session's username.
func (s *Session) SetName(name string) {
	s.nameMu.Lock()
	defer s.nameMu.Unlock()
	s.name = name
}

// RemoteAddr returns the peer address for logging.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// WriteLine sends one terminated line and flushes it immediately. The
// handshake is half-duplex, so the peer must observe each line promptly.
func (s *Session) WriteLine(line string) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.Write([]byte(line + "\n")); err != nil {
		return err
	}
	return nil
}

// ReadLine blocks until a full line arrives. It returns ok=false on
// orderly peer closure and on transport errors alike; the two are
// indistinguishable to callers on purpose.
func (s *Session) ReadLine() (string, bool) {
	if s.closed.Load() {
		return "", false
	}

	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", false
	}
	return strings.TrimRight(line, "\r\n"), true
}

// Disconnect notifies the peer with the shutdown sentinel and releases the
// transport best-effort. It reports whether the release fully succeeded
// and is safe to call more than once; after the first call all session I/O
// fails.
func (s *Session) Disconnect() bool {
	if !s.closed.CompareAndSwap(false, true) {
		return true
	}

	ok := true
	s.writeMu.Lock()
	if _, err := s.conn.Write([]byte(protocol.QuitSentinel + "\n")); err != nil {
		ok = false
	}
	s.writeMu.Unlock()

	if err := s.conn.Close(); err != nil {
		ok = false
	}
	return ok
}
